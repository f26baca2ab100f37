// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB returns a migrated in-memory SQLite database private to the test.
// The pool is pinned to one connection so every query sees the same memory database.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:?_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

// NewTestRedis starts a miniredis server and returns it with a connected client.
func NewTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:       username,
		Email:          fmt.Sprintf("%s@example.com", username),
		Password:       "not-a-real-hash",
		ImageURL:       "/static/images/default-pic.png",
		HeaderImageURL: "/static/images/warbler-hero.jpg",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateMessage inserts a message owned by userID at createdAt.
func CreateMessage(t testing.TB, db *gorm.DB, userID uint, text string, createdAt time.Time) *models.Message {
	t.Helper()

	msg := &models.Message{UserID: userID, Text: text, CreatedAt: createdAt}
	if err := db.Omit("User").Create(msg).Error; err != nil {
		t.Fatalf("create message: %v", err)
	}
	return msg
}

// Follow inserts a follow edge.
func Follow(t testing.TB, db *gorm.DB, followerID, followedID uint) {
	t.Helper()

	edge := &models.Follow{FollowerID: followerID, FollowedID: followedID}
	if err := db.Omit("Follower", "Followed").Create(edge).Error; err != nil {
		t.Fatalf("create follow: %v", err)
	}
}

// Like inserts a like edge.
func Like(t testing.TB, db *gorm.DB, userID, messageID uint) {
	t.Helper()

	like := &models.Like{UserID: userID, MessageID: messageID}
	if err := db.Omit("User", "Message").Create(like).Error; err != nil {
		t.Fatalf("create like: %v", err)
	}
}
