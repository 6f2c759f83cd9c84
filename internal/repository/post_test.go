package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"feedline/internal/cache"
	"feedline/internal/models"
	"feedline/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Password: "hash", Name: "Owner " + email, Status: models.DefaultUserStatus}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestPostRepository_ListAndCount(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db, nil)
	ctx := context.Background()
	owner := seedUser(t, db, "owner@b.com")

	var created []*models.Post
	for i := 0; i < 5; i++ {
		p := &models.Post{Title: fmt.Sprintf("title %d", i), Content: "content", ImageKey: fmt.Sprintf("k%d", i), UserID: owner.ID}
		require.NoError(t, repo.Create(ctx, p))
		created = append(created, p)
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)

	page, err := repo.List(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, created[4].ID, page[0].ID)
	assert.Equal(t, created[2].ID, page[2].ID)
	require.NotNil(t, page[0].Creator)
	assert.Equal(t, owner.Name, page[0].Creator.Name)

	rest, err := repo.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestPostRepository_GetUpdateDelete(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewPostRepository(db, cache.New(rdb))
	ctx := context.Background()
	owner := seedUser(t, db, "owner@b.com")

	post := &models.Post{Title: "hello there", Content: "general kenobi", ImageKey: "img-1", UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, post))

	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello there", got.Title)
	require.NotNil(t, got.Creator)
	assert.Equal(t, owner.ID, got.Creator.ID)
	assert.True(t, mr.Exists(cache.PostKey(post.ID)))

	cached, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Title, cached.Title)
	assert.Equal(t, got.UserID, cached.UserID)

	post.Title = "updated title"
	post.ImageKey = "img-2"
	require.NoError(t, repo.Update(ctx, post))
	assert.False(t, mr.Exists(cache.PostKey(post.ID)))

	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated title", got.Title)
	assert.Equal(t, "img-2", got.ImageKey)

	require.NoError(t, repo.Delete(ctx, post.ID))
	_, err = repo.GetByID(ctx, post.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	err = repo.Update(ctx, &models.Post{ID: 424242, Title: "x", Content: "y", ImageKey: "z"})
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestPostRepository_WriteEvictsRacingCacheFill(t *testing.T) {
	db := testutil.NewTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := cache.New(rdb)
	repo := NewPostRepository(db, c).(*postRepository)
	repo.staleWindow = 20 * time.Millisecond
	ctx := context.Background()
	owner := seedUser(t, db, "owner@b.com")

	post := &models.Post{Title: "soon gone", Content: "content", ImageKey: "img-1", UserID: owner.ID}
	require.NoError(t, repo.Create(ctx, post))
	stale, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, post.ID))
	// A reader that loaded the row before the delete fills the cache after it.
	require.NoError(t, c.SetJSON(ctx, cache.PostKey(post.ID), stale, cache.PostTTL))

	require.Eventually(t, func() bool { return !mr.Exists(cache.PostKey(post.ID)) },
		time.Second, 5*time.Millisecond)
	_, err = repo.GetByID(ctx, post.ID)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}
