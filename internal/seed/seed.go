// Package seed fills a database with demo warbler data for development.
package seed

import (
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"warbler/internal/auth"
	"warbler/internal/middleware"
	"warbler/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	MessagesPerUser int
	FollowsPerUser  int
	LikesPerUser    int
	// MaxDays spreads message timestamps over this many past days.
	MaxDays int
	// RandSeed makes runs reproducible when non-zero.
	RandSeed int64
	// ImageURL and HeaderImageURL are assigned to every seeded user.
	ImageURL       string
	HeaderImageURL string
}

// DefaultOptions is a small, browsable data set.
func DefaultOptions() Options {
	return Options{
		NumUsers:        20,
		MessagesPerUser: 10,
		FollowsPerUser:  5,
		LikesPerUser:    10,
		MaxDays:         30,
		ImageURL:        "/static/images/default-pic.png",
		HeaderImageURL:  "/static/images/warbler-hero.jpg",
	}
}

// Result counts what a run inserted.
type Result struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

// Seeder inserts demo users, messages, follow edges and like edges.
type Seeder struct {
	db     *gorm.DB
	hasher auth.PasswordHasher
	faker  *gofakeit.Faker
	now    func() time.Time
}

// NewSeeder returns a Seeder writing to db. hasher hashes DemoPassword once per run.
func NewSeeder(db *gorm.DB, hasher auth.PasswordHasher) *Seeder {
	return &Seeder{db: db, hasher: hasher, now: time.Now}
}

// ClearAll deletes every row of every warbler table.
func (s *Seeder) ClearAll() error {
	middleware.Logger.Info("clearing existing data")
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Message{}, &models.User{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Run seeds according to opts. The first account is always "demo".
func (s *Seeder) Run(opts Options) (*Result, error) {
	if opts.NumUsers <= 0 {
		return nil, fmt.Errorf("NumUsers must be positive, got %d", opts.NumUsers)
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.faker = gofakeit.New(seed)

	middleware.Logger.Info("seeding database",
		slog.Int("users", opts.NumUsers),
		slog.Int("messages_per_user", opts.MessagesPerUser))

	res := &Result{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		users, err := s.createUsers(tx, opts)
		if err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		res.Users = len(users)

		msgs, err := s.createMessages(tx, users, opts)
		if err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		res.Messages = len(msgs)

		if res.Follows, err = s.createFollows(tx, users, opts.FollowsPerUser); err != nil {
			return fmt.Errorf("create follows: %w", err)
		}
		if res.Likes, err = s.createLikes(tx, users, msgs, opts.LikesPerUser); err != nil {
			return fmt.Errorf("create likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.Logger.Info("seeding complete",
		slog.Int("users", res.Users),
		slog.Int("messages", res.Messages),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes))
	return res, nil
}

func (s *Seeder) createUsers(tx *gorm.DB, opts Options) ([]*models.User, error) {
	hash, err := s.hasher.Hash(DemoPassword)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		username := "demo"
		if i > 0 {
			suffix := fmt.Sprintf("_%d", i)
			username = truncate(s.faker.Username(), 30-len(suffix)) + suffix
		}
		users = append(users, &models.User{
			Username:       username,
			Email:          fmt.Sprintf("%s@example.com", username),
			Password:       hash,
			ImageURL:       opts.ImageURL,
			HeaderImageURL: opts.HeaderImageURL,
			Bio:            s.faker.Sentence(8),
			Location:       s.faker.City(),
		})
	}
	if err := tx.CreateInBatches(users, 100).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) createMessages(tx *gorm.DB, users []*models.User, opts Options) ([]*models.Message, error) {
	maxDays := opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	window := time.Duration(maxDays) * 24 * time.Hour

	msgs := make([]*models.Message, 0, len(users)*opts.MessagesPerUser)
	for _, u := range users {
		for j := 0; j < opts.MessagesPerUser; j++ {
			back := time.Duration(s.faker.Number(0, int(window/time.Minute))) * time.Minute
			msgs = append(msgs, &models.Message{
				UserID:    u.ID,
				Text:      truncate(s.faker.Sentence(s.faker.Number(3, 12)), models.MaxMessageLength),
				CreatedAt: s.now().Add(-back),
			})
		}
	}
	if len(msgs) == 0 {
		return msgs, nil
	}
	if err := tx.Omit("User").CreateInBatches(msgs, 200).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Seeder) createFollows(tx *gorm.DB, users []*models.User, perUser int) (int, error) {
	var edges []models.Follow
	for _, u := range users {
		for _, target := range s.pick(len(users), perUser) {
			if users[target].ID == u.ID {
				continue
			}
			edges = append(edges, models.Follow{FollowerID: u.ID, FollowedID: users[target].ID})
		}
	}
	if len(edges) == 0 {
		return 0, nil
	}
	err := tx.Omit("Follower", "Followed").
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(edges, 200).Error
	return len(edges), err
}

func (s *Seeder) createLikes(tx *gorm.DB, users []*models.User, msgs []*models.Message, perUser int) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	var likes []models.Like
	for _, u := range users {
		for _, idx := range s.pick(len(msgs), perUser) {
			likes = append(likes, models.Like{UserID: u.ID, MessageID: msgs[idx].ID})
		}
	}
	if len(likes) == 0 {
		return 0, nil
	}
	err := tx.Omit("User", "Message").
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(likes, 200).Error
	return len(likes), err
}

// pick returns up to k distinct indexes in [0, n).
func (s *Seeder) pick(n, k int) []int {
	if k > n {
		k = n
	}
	seen := make(map[int]bool, k)
	out := make([]int, 0, k)
	for len(out) < k {
		i := s.faker.Number(0, n-1)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
