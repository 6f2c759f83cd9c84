package repository

import (
	"context"
	"testing"

	"feedline/internal/models"
	"feedline/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRepository_Lifecycle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewTokenRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "t@b.com")

	_, err := repo.GetByUserID(ctx, user.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	require.NoError(t, repo.Upsert(ctx, user.ID, "hash-1"))
	require.NoError(t, repo.Upsert(ctx, user.ID, "hash-2"))

	var count int64
	require.NoError(t, db.Model(&models.RefreshToken{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "login must upsert a single row per user")

	record, err := repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", record.TokenHash)

	rotated, err := repo.Rotate(ctx, user.ID, "hash-1", "hash-3")
	require.NoError(t, err)
	assert.False(t, rotated, "stale hash must not rotate")

	rotated, err = repo.Rotate(ctx, user.ID, "hash-2", "hash-3")
	require.NoError(t, err)
	assert.True(t, rotated)

	record, err = repo.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-3", record.TokenHash)

	existed, err := repo.DeleteByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = repo.DeleteByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, existed)
}
