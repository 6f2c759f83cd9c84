package repository

import (
	"context"
	"errors"
	"time"

	"feedline/internal/cache"
	"feedline/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, limit, offset int) ([]models.Post, error)
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db    *gorm.DB
	cache *cache.Cache
	// staleWindow delays the second invalidation after a write.
	staleWindow time.Duration
}

// NewPostRepository returns a PostRepository reading single posts through c.
// c may be nil.
func NewPostRepository(db *gorm.DB, c *cache.Cache) PostRepository {
	return &postRepository{db: db, cache: c, staleWindow: cache.StaleReadWindow}
}

// List returns posts newest first with their owners loaded.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewServerError("failed to list posts", err)
	}
	for i := range posts {
		posts[i].AttachCreator()
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return 0, models.NewServerError("failed to count posts", err)
	}
	return total, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		if err := r.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", id)
			}
			return models.NewServerError("failed to load post", err)
		}
		post.AttachCreator()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(post).Error; err != nil {
		return models.NewServerError("failed to create post", err)
	}
	return nil
}

// Update writes the mutable fields of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Updates(map[string]interface{}{
			"title":     post.Title,
			"content":   post.Content,
			"image_key": post.ImageKey,
		})
	if res.Error != nil {
		return models.NewServerError("failed to update post", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	r.cache.InvalidateTwice(ctx, cache.PostKey(post.ID), r.staleWindow)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		return models.NewServerError("failed to delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.cache.InvalidateTwice(ctx, cache.PostKey(id), r.staleWindow)
	return nil
}
