package service

import (
	"context"
	"errors"
	"testing"

	"warbler/internal/cache"
	"warbler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Signup_AppliesDefaultsAndHashes(t *testing.T) {
	t.Parallel()

	repo := noopUserRepo()
	var saved *models.User
	repo.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 7
		saved = u
		return nil
	}
	tx := &passthroughTx{}
	svc := NewUserService(Repositories{Users: repo}, tx, testHasher(), cache.NewStore(nil), testDefaults)

	user, err := svc.Signup(context.Background(), SignupInput{Username: "u1", Email: "u1@example.com", Password: "password"})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, tx.calls)
	assert.Equal(t, uint(7), user.ID)
	assert.Equal(t, testDefaults.ImageURL, user.ImageURL)
	assert.Equal(t, testDefaults.HeaderImageURL, user.HeaderImageURL)
	assert.NotEqual(t, "password", saved.Password)
	assert.True(t, testHasher().Verify(saved.Password, "password"))
}

func TestUserService_Signup_RequiresFields(t *testing.T) {
	t.Parallel()

	svc := NewUserService(Repositories{Users: noopUserRepo()}, &passthroughTx{}, testHasher(), nil, testDefaults)
	_, err := svc.Signup(context.Background(), SignupInput{Username: "u1"})
	assertCode(t, err, models.CodeValidation)
}

func TestUserService_Signup_DuplicateLeavesNoRecord(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.signup(t, "u1", "password")

	_, err := e.users.Signup(ctx, SignupInput{Username: "u1", Email: "other@example.com", Password: "password"})
	assertCode(t, err, models.CodeDuplicateIdentity)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Username or email already taken", appErr.Message)

	_, err = e.users.Signup(ctx, SignupInput{Username: "u2", Email: "u1@example.com", Password: "password"})
	assertCode(t, err, models.CodeDuplicateIdentity)

	var count int64
	require.NoError(t, e.db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUserService_Authenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.signup(t, "u1", "password")

	got, err := e.users.Authenticate(ctx, "u1", "password")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u1.ID, got.ID)

	got, err = e.users.Authenticate(ctx, "u1", "wrong-password")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.users.Authenticate(ctx, "nobody", "password")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUserService_Authenticate_RepoError(t *testing.T) {
	t.Parallel()

	repoErr := errors.New("db down")
	repo := noopUserRepo()
	repo.getByUsernameFn = func(context.Context, string) (*models.User, error) { return nil, repoErr }
	svc := NewUserService(Repositories{Users: repo}, &passthroughTx{}, testHasher(), nil, testDefaults)

	_, err := svc.Authenticate(context.Background(), "u1", "password")
	assert.ErrorIs(t, err, repoErr)
}

func TestUserService_UpdateProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.signup(t, "u1", "password")
	e.signup(t, "u2", "password")

	t.Run("wrong password changes nothing", func(t *testing.T) {
		_, err := e.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID: u1.ID, Username: "renamed", Email: "u1@example.com", Password: "nope-nope",
		})
		assertCode(t, err, models.CodeInvalidCredentials)
		assert.Equal(t, "Invalid username/password.", err.Error())

		got, err := e.users.GetUser(ctx, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1", got.Username)
	})

	t.Run("applies edit and sanitizes", func(t *testing.T) {
		user, err := e.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID:   u1.ID,
			Username: "renamed",
			Email:    "renamed@example.com",
			Bio:      "<b>hi</b> there",
			Location: "Earth",
			Password: "password",
		})
		require.NoError(t, err)
		assert.Equal(t, "renamed", user.Username)
		assert.Equal(t, "hi there", user.Bio)
		assert.Equal(t, testDefaults.ImageURL, user.ImageURL)

		got, err := e.users.GetUser(ctx, u1.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Username, "cache entry must be invalidated")
	})

	t.Run("taken username", func(t *testing.T) {
		_, err := e.users.UpdateProfile(ctx, UpdateProfileInput{
			UserID: u1.ID, Username: "u2", Email: "renamed@example.com", Password: "password",
		})
		assertCode(t, err, models.CodeDuplicateIdentity)
	})
}

func TestUserService_GetUser_NeverReturnsHash(t *testing.T) {
	e := newEnv(t)
	u1 := e.signup(t, "u1", "password")

	for i := 0; i < 2; i++ {
		got, err := e.users.GetUser(context.Background(), u1.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Password)
		assert.Equal(t, "u1", got.Username)
	}

	_, err := e.users.GetUser(context.Background(), 999)
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_SearchUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "alice", "password")
	e.signup(t, "bob", "password")
	e.signup(t, "alicia", "password")

	all, err := e.users.SearchUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	found, err := e.users.SearchUsers(ctx, "ali")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "alice", found[0].Username)
	assert.Equal(t, "alicia", found[1].Username)
}

func TestUserService_DeleteUser_Cascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.signup(t, "u1", "password")
	u2 := e.signup(t, "u2", "password")

	m1, err := e.messages.Create(ctx, CreateMessageInput{UserID: u1.ID, Text: "mine"})
	require.NoError(t, err)
	m2, err := e.messages.Create(ctx, CreateMessageInput{UserID: u2.ID, Text: "theirs"})
	require.NoError(t, err)
	require.NoError(t, e.graph.Follow(ctx, u1.ID, u2.ID))
	require.NoError(t, e.graph.Follow(ctx, u2.ID, u1.ID))
	require.NoError(t, e.graph.Like(ctx, u1.ID, m2.ID))
	require.NoError(t, e.graph.Like(ctx, u2.ID, m1.ID))

	require.NoError(t, e.users.DeleteUser(ctx, u1.ID))

	for _, model := range []any{&models.Message{}, &models.Follow{}, &models.Like{}} {
		var n int64
		require.NoError(t, e.db.Model(model).Count(&n).Error)
		if _, isMsg := model.(*models.Message); isMsg {
			assert.Equal(t, int64(1), n, "only u2's message remains")
		} else {
			assert.Zero(t, n)
		}
	}

	_, err = e.users.GetUser(ctx, u1.ID)
	assertCode(t, err, models.CodeNotFound)

	err = e.users.DeleteUser(ctx, u1.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_GetProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u1 := e.signup(t, "u1", "password")
	u2 := e.signup(t, "u2", "password")

	m, err := e.messages.Create(ctx, CreateMessageInput{UserID: u1.ID, Text: "hello"})
	require.NoError(t, err)
	require.NoError(t, e.graph.Follow(ctx, u2.ID, u1.ID))
	require.NoError(t, e.graph.Like(ctx, u2.ID, m.ID))

	view, err := e.users.GetProfile(ctx, u1.ID, u2.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", view.User.Username)
	require.Len(t, view.Messages, 1)
	assert.True(t, view.Messages[0].Liked)
	assert.Equal(t, int64(1), view.MessageCount)
	assert.Equal(t, int64(1), view.FollowerCount)
	assert.Equal(t, int64(0), view.FollowingCount)
	assert.Equal(t, int64(0), view.LikeCount)
	assert.True(t, view.ViewerFollows)

	self, err := e.users.GetProfile(ctx, u1.ID, u1.ID)
	require.NoError(t, err)
	assert.False(t, self.ViewerFollows)
	assert.False(t, self.Messages[0].Liked)
}
