package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"feedline/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStore) URL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockObjectStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockObjectStore) Driver() string {
	args := m.Called()
	return args.String(0)
}

func newMockStoreServer(t *testing.T, store *MockObjectStore) *testServer {
	t.Helper()
	srv, err := NewServerWithDeps(testConfig(), testutil.NewTestDB(t), nil, store)
	require.NoError(t, err)
	t.Cleanup(func() { srv.shutdownFn() })
	return &testServer{Server: srv, app: srv.App()}
}

func TestReadinessCheck_StorageDown(t *testing.T) {
	store := new(MockObjectStore)
	store.On("Ping", mock.Anything).Return(errors.New("bucket not found"))
	store.On("Driver").Return("s3")
	ts := newMockStoreServer(t, store)

	status, body := ts.doJSON(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unhealthy (s3)", body["checks"].(map[string]any)["storage"])
	store.AssertExpectations(t)
}

func TestDeletePost_BlobDeleteFailureIsReported(t *testing.T) {
	store := new(MockObjectStore)
	store.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "image/png").Return(nil).Once()
	store.On("URL", mock.AnythingOfType("string")).Return("https://cdn.test/image.png")
	store.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(errors.New("access denied")).Once()
	store.On("Driver").Return("s3")
	ts := newMockStoreServer(t, store)

	owner := ts.signupAndLogin(t, "ann@example.com", "Ann")
	post := ts.createPost(t, owner.Token, "Doomed post")
	assert.Equal(t, "https://cdn.test/image.png", post["imageUrl"])

	status, body := ts.doJSON(t, http.MethodDelete, fmt.Sprintf("/feed/post/%.0f", post["id"]), owner.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["deleteFromS3"])

	status, _ = ts.doJSON(t, http.MethodGet, fmt.Sprintf("/feed/posts/%.0f", post["id"]), "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	store.AssertExpectations(t)
}

func TestCreatePost_UploadFailureLeavesNoPost(t *testing.T) {
	store := new(MockObjectStore)
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()
	ts := newMockStoreServer(t, store)

	owner := ts.signupAndLogin(t, "ann@example.com", "Ann")
	status, _ := ts.do(t, postRequest(t, http.MethodPost, "/feed/post", owner.Token,
		"Valid title", "some content", testutil.PNG(t), "image/png"))
	assert.Equal(t, http.StatusInternalServerError, status)

	_, body := ts.doJSON(t, http.MethodGet, "/feed/posts", "", nil)
	assert.EqualValues(t, 0, body["totalItems"])
	store.AssertExpectations(t)
}
