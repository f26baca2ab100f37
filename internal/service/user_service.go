package service

import (
	"context"
	"log/slog"

	"warbler/internal/auth"
	"warbler/internal/cache"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"
)

// UserDefaults are the images assigned when a user leaves them blank.
type UserDefaults struct {
	ImageURL       string
	HeaderImageURL string
}

// UserService is the user directory: accounts, credentials and profiles.
type UserService struct {
	repos    Repositories
	tx       repository.Transactor
	hasher   auth.PasswordHasher
	cache    *cache.Store
	defaults UserDefaults
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	ImageURL string
}

type UpdateProfileInput struct {
	UserID         uint
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
	// Password must match the stored hash before anything changes.
	Password string
}

// ProfileView is a user page: the user, their newest messages and their counts.
type ProfileView struct {
	User           *models.User      `json:"user"`
	Messages       []*models.Message `json:"messages"`
	MessageCount   int64             `json:"message_count"`
	FollowingCount int64             `json:"following_count"`
	FollowerCount  int64             `json:"follower_count"`
	LikeCount      int64             `json:"like_count"`
	ViewerFollows  bool              `json:"viewer_follows"`
}

// NewUserService returns a UserService. store may wrap a nil client.
func NewUserService(repos Repositories, tx repository.Transactor, hasher auth.PasswordHasher, store *cache.Store, defaults UserDefaults) *UserService {
	return &UserService{
		repos:    repos,
		tx:       tx,
		hasher:   hasher,
		cache:    store,
		defaults: defaults,
	}
}

// Signup creates an account. A taken username or email yields DuplicateIdentity
// and leaves no record behind.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email and password are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		Password:       hash,
		ImageURL:       orDefault(in.ImageURL, s.defaults.ImageURL),
		HeaderImageURL: s.defaults.HeaderImageURL,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repos.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	observability.Signups.Inc()
	middleware.Logger.InfoContext(ctx, "user signed up", slog.Uint64("new_user_id", uint64(user.ID)))
	return user, nil
}

// Authenticate returns the user when username and password match, nil otherwise.
// Unknown users and wrong passwords are indistinguishable.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.repos.Users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(user.Password, password) {
		return nil, nil
	}
	return user, nil
}

// UpdateProfile re-checks the acting user's password, then applies the edit.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.repos.Users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(user.Password, in.Password) {
		return nil, models.NewInvalidCredentialsError("Invalid username/password.")
	}
	if in.Username == "" || in.Email == "" {
		return nil, models.NewValidationError("Username and email are required")
	}

	user.Username = in.Username
	user.Email = in.Email
	user.ImageURL = orDefault(in.ImageURL, s.defaults.ImageURL)
	user.HeaderImageURL = orDefault(in.HeaderImageURL, s.defaults.HeaderImageURL)
	user.Bio = validation.SanitizeText(in.Bio)
	user.Location = validation.SanitizeText(in.Location)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repos.Users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cache.UserKey(user.ID))
	return user, nil
}

// DeleteUser removes the account and everything that references it.
func (s *UserService) DeleteUser(ctx context.Context, userID uint) error {
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repos.Users.Delete(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, cache.UserKey(userID))
	middleware.Logger.InfoContext(ctx, "user deleted", slog.Uint64("deleted_user_id", uint64(userID)))
	return nil
}

// GetUser returns the public user record. The password hash is never cached,
// so the result must not be used for credential checks.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		found, err := s.repos.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		user = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return &user, nil
}

// SearchUsers lists every user when q is empty, else users whose username contains q.
func (s *UserService) SearchUsers(ctx context.Context, q string) ([]*models.User, error) {
	if q == "" {
		return s.repos.Users.List(ctx, unbounded, 0)
	}
	return s.repos.Users.Search(ctx, q, unbounded, 0)
}

// GetProfile assembles the profile page of id as seen by viewerID.
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (*ProfileView, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{User: user}
	if view.Messages, err = s.repos.Messages.ListByUser(ctx, id, FeedLimit); err != nil {
		return nil, err
	}
	if err := markLiked(ctx, s.repos.Likes, viewerID, view.Messages); err != nil {
		return nil, err
	}
	if view.MessageCount, err = s.repos.Messages.CountByUser(ctx, id); err != nil {
		return nil, err
	}
	if view.FollowingCount, err = s.repos.Follows.CountFollowing(ctx, id); err != nil {
		return nil, err
	}
	if view.FollowerCount, err = s.repos.Follows.CountFollowers(ctx, id); err != nil {
		return nil, err
	}
	if view.LikeCount, err = s.repos.Likes.CountByUser(ctx, id); err != nil {
		return nil, err
	}
	if viewerID != 0 {
		if view.ViewerFollows, err = s.repos.Follows.Exists(ctx, viewerID, id); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
