package service

import (
	"context"
	"testing"

	"warbler/internal/auth"
	"warbler/internal/cache"
	"warbler/internal/models"
	"warbler/internal/repository"
	"warbler/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	deleteFn        func(context.Context, uint) error
	listFn          func(context.Context, int, int) ([]*models.User, error)
	searchFn        func(context.Context, string, int, int) ([]*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *userRepoStub) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *userRepoStub) Search(ctx context.Context, q string, limit, offset int) ([]*models.User, error) {
	return s.searchFn(ctx, q, limit, offset)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return nil, models.NewNotFoundError("User", id)
		},
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return nil, nil },
		createFn:        func(context.Context, *models.User) error { return nil },
		updateFn:        func(context.Context, *models.User) error { return nil },
		deleteFn:        func(context.Context, uint) error { return nil },
		listFn:          func(context.Context, int, int) ([]*models.User, error) { return nil, nil },
		searchFn:        func(context.Context, string, int, int) ([]*models.User, error) { return nil, nil },
	}
}

type messageRepoStub struct {
	getByIDFn func(context.Context, uint) (*models.Message, error)
	deleteFn  func(context.Context, uint) error
}

func (s *messageRepoStub) Create(context.Context, *models.Message) error { return nil }
func (s *messageRepoStub) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	return s.getByIDFn(ctx, id)
}
func (s *messageRepoStub) Delete(ctx context.Context, id uint) error { return s.deleteFn(ctx, id) }
func (s *messageRepoStub) ListByUser(context.Context, uint, int) ([]*models.Message, error) {
	return nil, nil
}
func (s *messageRepoStub) ListFeed(context.Context, uint, int) ([]*models.Message, error) {
	return nil, nil
}
func (s *messageRepoStub) CountByUser(context.Context, uint) (int64, error) { return 0, nil }

// passthroughTx runs fn without a database.
type passthroughTx struct{ calls int }

func (p *passthroughTx) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	p.calls++
	return fn(ctx)
}

var _ repository.Transactor = (*passthroughTx)(nil)

func testHasher() auth.PasswordHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

var testDefaults = UserDefaults{
	ImageURL:       "/static/images/default-pic.png",
	HeaderImageURL: "/static/images/warbler-hero.jpg",
}

// env wires every service over one in-memory SQLite database.
type env struct {
	db       *gorm.DB
	repos    Repositories
	users    *UserService
	graph    *GraphService
	messages *MessageService
	feed     *FeedService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewTestDB(t)
	repos := Repositories{
		Users:    repository.NewUserRepository(db),
		Messages: repository.NewMessageRepository(db),
		Follows:  repository.NewFollowRepository(db),
		Likes:    repository.NewLikeRepository(db),
	}
	tx := repository.NewTransactor(db)
	_, rdb := testutil.NewTestRedis(t)

	return &env{
		db:       db,
		repos:    repos,
		users:    NewUserService(repos, tx, testHasher(), cache.NewStore(rdb), testDefaults),
		graph:    NewGraphService(repos),
		messages: NewMessageService(repos, tx, nil),
		feed:     NewFeedService(repos),
	}
}

func (e *env) signup(t *testing.T, username, password string) *models.User {
	t.Helper()
	u, err := e.users.Signup(context.Background(), SignupInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, code), "want %s, got %v", code, err)
}
