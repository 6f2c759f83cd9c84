package bootstrap

import (
	"context"
	"testing"

	"feedline/internal/config"
	"feedline/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestNewObjectStore(t *testing.T) {
	local, err := NewObjectStore(&config.Config{StorageDriver: "local", ImageDir: t.TempDir(), ImagePublicBaseURL: "/images"})
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStore{}, local)
	assert.Equal(t, "/images/a.png", local.URL("a.png"))

	s3, err := NewObjectStore(&config.Config{
		StorageDriver:      "s3",
		S3Bucket:           "feed-images",
		S3Region:           "us-east-1",
		S3AccessKeyID:      "key",
		S3SecretAccessKey:  "secret",
		ImagePublicBaseURL: "https://feed-images.s3.us-east-1.amazonaws.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3", s3.Driver())
	assert.Equal(t, "https://feed-images.s3.us-east-1.amazonaws.com/a.png", s3.URL("a.png"))

	_, err = NewObjectStore(&config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)
}

func TestInitRuntime_ClosesDatabaseWhenStoreFails(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	orig := connectDB
	connectDB = func(*config.Config) (*gorm.DB, error) { return gormDB, nil }
	t.Cleanup(func() { connectDB = orig })

	mock.ExpectClose()
	rt, err := InitRuntime(context.Background(), &config.Config{StorageDriver: "ftp"})
	require.Error(t, err)
	assert.Nil(t, rt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
