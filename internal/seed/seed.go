// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feedline/internal/models"
	"feedline/internal/observability"
	"feedline/internal/storage"

	"gorm.io/gorm"
)

// DefaultPassword is assigned to every generated user.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// MaxDays spreads post timestamps over the last MaxDays days.
	MaxDays int
	// BcryptCost defaults to bcrypt.MinCost; seeded accounts are not meant to be secure.
	BcryptCost int
}

// Seeder fills the database and object store with demo data.
type Seeder struct {
	db      *gorm.DB
	store   storage.ObjectStore
	factory *Factory
}

func NewSeeder(db *gorm.DB, store storage.ObjectStore, opts Options) *Seeder {
	return &Seeder{db: db, store: store, factory: NewFactory(db, store, opts)}
}

// Factory exposes the underlying factory for callers that need single entities.
func (s *Seeder) Factory() *Factory { return s.factory }

// Run creates opts.NumUsers users and spreads opts.NumPosts posts among them.
func (s *Seeder) Run(ctx context.Context, opts Options) ([]*models.User, []*models.Post, error) {
	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, nil, err
		}
	}
	if opts.NumUsers <= 0 {
		return nil, nil, nil
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return users, nil, fmt.Errorf("create user %d: %w", i+1, err)
		}
		users = append(users, u)
	}
	observability.Logger.Info("seeded users", slog.Int("count", len(users)))

	posts := make([]*models.Post, 0, opts.NumPosts)
	for i := 0; i < opts.NumPosts; i++ {
		p, err := s.factory.CreatePost(ctx, users[s.factory.rng.Intn(len(users))])
		if err != nil {
			return users, posts, fmt.Errorf("create post %d: %w", i+1, err)
		}
		posts = append(posts, p)
	}
	observability.Logger.Info("seeded posts", slog.Int("count", len(posts)))
	return users, posts, nil
}

// ClearAll removes every post image, then hard-deletes all rows.
func (s *Seeder) ClearAll(ctx context.Context) error {
	var keys []string
	if err := s.db.WithContext(ctx).Unscoped().Model(&models.Post{}).Pluck("image_key", &keys).Error; err != nil {
		return fmt.Errorf("list image keys: %w", err)
	}

	var errs []error
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("delete image %s: %w", key, err))
		}
	}

	for _, model := range []any{&models.RefreshToken{}, &models.Post{}, &models.User{}} {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}

	observability.Logger.Info("cleared seed data", slog.Int("images", len(keys)))
	return errors.Join(errs...)
}
