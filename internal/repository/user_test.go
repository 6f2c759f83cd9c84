package repository

import (
	"context"
	"regexp"
	"testing"

	"feedline/internal/models"
	"feedline/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID_Postgres(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		expectedUser *models.User
		expectedKind models.ErrorKind
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "email", "name", "status"}).
					AddRow(1, "a@b.com", "A", "User")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Email: "a@b.com", Name: "A", Status: "User"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedKind: models.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedUser == nil {
				require.Error(t, err)
				assert.True(t, models.IsKind(err, tt.expectedKind))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser.Email, user.Email)
				assert.Equal(t, tt.expectedUser.Name, user.Name)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Create_UniqueViolationIsConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.User{Email: "a@b.com", Password: "x", Name: "A"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_SQLite(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &models.User{Email: "a@b.com", Password: "hash", Name: "A", Status: models.DefaultUserStatus}
	require.NoError(t, repo.Create(ctx, user))
	require.NotZero(t, user.ID)

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Email: "a@b.com", Password: "hash", Name: "B"})
		assert.True(t, models.IsKind(err, models.KindConflict))
	})

	t.Run("get by email", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "a@b.com")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, user.ID, found.ID)

		missing, err := repo.GetByEmail(ctx, "nobody@b.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("update status", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, user.ID, "busy"))
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "busy", got.Status)

		err = repo.UpdateStatus(ctx, 9999, "busy")
		assert.True(t, models.IsKind(err, models.KindNotFound))
	})

	t.Run("list post ids oldest first", func(t *testing.T) {
		ids, err := repo.ListPostIDs(ctx, user.ID)
		require.NoError(t, err)
		assert.Empty(t, ids)

		posts := NewPostRepository(db, nil)
		first := &models.Post{Title: "first post", Content: "content", ImageKey: "k1", UserID: user.ID}
		second := &models.Post{Title: "second post", Content: "content", ImageKey: "k2", UserID: user.ID}
		require.NoError(t, posts.Create(ctx, first))
		require.NoError(t, posts.Create(ctx, second))

		ids, err = repo.ListPostIDs(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{first.ID, second.ID}, ids)
	})
}
