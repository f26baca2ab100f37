package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters!!"

func TestSessionManager_IssueAndParse(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, nil)

	token, err := m.Issue(42, "u1")
	require.NoError(t, err)

	claims, err := m.Parse(context.Background(), token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, "u1", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionManager_RejectsTamperedAndForeignTokens(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, nil)
	other := NewSessionManager("another-secret-of-sufficient-length", time.Hour, nil)

	token, err := other.Issue(1, "u1")
	require.NoError(t, err)

	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, err = m.Parse(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_RejectsExpired(t *testing.T) {
	m := NewSessionManager(testSecret, time.Minute, nil)
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(1, "u1")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionManager_Revoke(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	m := NewSessionManager(testSecret, time.Hour, rdb)
	ctx := context.Background()

	token, err := m.Issue(7, "u7")
	require.NoError(t, err)
	claims, err := m.Parse(ctx, token)
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx, claims))
	assert.True(t, mr.Exists(revokedPrefix+claims.ID))

	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidSession)

	fresh, err := m.Issue(7, "u7")
	require.NoError(t, err)
	_, err = m.Parse(ctx, fresh)
	assert.NoError(t, err)
}

func TestSessionManager_RevokeWithoutRedisIsNoop(t *testing.T) {
	m := NewSessionManager(testSecret, time.Hour, nil)
	assert.NoError(t, m.Revoke(context.Background(), &SessionClaims{}))
}
