package repository

import (
	"context"
	"errors"
	"time"

	"feedline/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository stores the single live refresh token hash per user.
type TokenRepository interface {
	Upsert(ctx context.Context, userID uint, tokenHash string) error
	GetByUserID(ctx context.Context, userID uint) (*models.RefreshToken, error)
	// Rotate replaces oldHash with newHash and reports false when the stored
	// hash no longer equals oldHash.
	Rotate(ctx context.Context, userID uint, oldHash, newHash string) (bool, error)
	// DeleteByUserID reports whether a row existed.
	DeleteByUserID(ctx context.Context, userID uint) (bool, error)
}

type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository returns a new TokenRepository implementation.
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Upsert(ctx context.Context, userID uint, tokenHash string) error {
	record := models.RefreshToken{UserID: userID, TokenHash: tokenHash}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"token_hash", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return models.NewServerError("failed to store refresh token", err)
	}
	return nil
}

func (r *tokenRepository) GetByUserID(ctx context.Context, userID uint) (*models.RefreshToken, error) {
	var record models.RefreshToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("RefreshToken", userID)
		}
		return nil, models.NewServerError("failed to load refresh token", err)
	}
	return &record, nil
}

func (r *tokenRepository) Rotate(ctx context.Context, userID uint, oldHash, newHash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND token_hash = ?", userID, oldHash).
		Updates(map[string]interface{}{"token_hash": newHash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, models.NewServerError("failed to rotate refresh token", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *tokenRepository) DeleteByUserID(ctx context.Context, userID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return false, models.NewServerError("failed to delete refresh token", res.Error)
	}
	return res.RowsAffected > 0, nil
}
