// Package bootstrap wires the process-wide dependencies shared by the commands.
package bootstrap

import (
	"fmt"
	"log/slog"

	"warbler/internal/auth"
	"warbler/internal/cache"
	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/middleware"
	"warbler/internal/models"
	"warbler/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo data.
	SeedDemo bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.Connect(cfg.RedisURL)

	if opts.SeedDemo || cfg.SeedOnStart {
		if err := seedIfEmpty(cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, rdb, nil
}

func seedIfEmpty(cfg *config.Config, db *gorm.DB) error {
	var users int64
	if err := db.Model(&models.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		middleware.Logger.Info("skipping demo seed, database not empty", slog.Int64("users", users))
		return nil
	}

	opts := seed.DefaultOptions()
	opts.ImageURL = cfg.DefaultImageURL
	opts.HeaderImageURL = cfg.DefaultHeaderImageURL
	_, err := seed.NewSeeder(db, auth.NewBcryptHasher(cfg.BcryptCost)).Run(opts)
	return err
}
