package repository

import (
	"context"
	"testing"

	"warbler/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_Idempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	created, err := repo.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created)

	n, err := repo.CountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := repo.Exists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	removed, err := repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFollowRepository_Listings(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")
	c := testutil.CreateUser(t, db, "c")

	_, err := repo.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = repo.Create(ctx, a.ID, c.ID)
	require.NoError(t, err)
	_, err = repo.Create(ctx, c.ID, a.ID)
	require.NoError(t, err)

	following, err := repo.ListFollowing(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.Equal(t, "b", following[0].Username)
	assert.Equal(t, "c", following[1].Username)

	followers, err := repo.ListFollowers(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "c", followers[0].Username)

	n, err := repo.CountFollowing(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
