package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"feedline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	listFn    func(context.Context, int, int) ([]models.Post, error)
	countFn   func(context.Context) (int64, error)
	getByIDFn func(context.Context, uint) (*models.Post, error)
	createFn  func(context.Context, *models.Post) error
	updateFn  func(context.Context, *models.Post) error
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		listFn:    func(_ context.Context, _, _ int) ([]models.Post, error) { return nil, nil },
		countFn:   func(_ context.Context) (int64, error) { return 0, nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) { return nil, models.NewNotFoundError("Post", id) },
		createFn:  func(_ context.Context, _ *models.Post) error { return nil },
		updateFn:  func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:  func(_ context.Context, _ uint) error { return nil },
	}
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn      func(context.Context, uint) (*models.User, error)
	getByEmailFn   func(context.Context, string) (*models.User, error)
	createFn       func(context.Context, *models.User) error
	updateStatusFn func(context.Context, uint, string) error
	listPostIDsFn  func(context.Context, uint) ([]uint, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdateStatus(ctx context.Context, id uint, status string) error {
	return s.updateStatusFn(ctx, id, status)
}
func (s *userRepoStub) ListPostIDs(ctx context.Context, id uint) ([]uint, error) {
	return s.listPostIDsFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "owner", Status: models.DefaultUserStatus}, nil
		},
		getByEmailFn:   func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:       func(_ context.Context, _ *models.User) error { return nil },
		updateStatusFn: func(_ context.Context, _ uint, _ string) error { return nil },
		listPostIDsFn:  func(_ context.Context, _ uint) ([]uint, error) { return nil, nil },
	}
}

// memStore is an in-memory storage.ObjectStore.
type memStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	putErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	m.objects[key] = buf.Bytes()
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) URL(key string) string        { return "https://cdn.test/" + key }
func (m *memStore) Ping(_ context.Context) error { return nil }
func (m *memStore) Driver() string               { return "memory" }

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// recordingPublisher captures emitted events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []PostEvent
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := data.(PostEvent); ok && event == EventPost {
		p.events = append(p.events, ev)
	}
	return p.err
}

func (p *recordingPublisher) recorded() []PostEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PostEvent(nil), p.events...)
}

func assertKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, kind, appErr.Kind, "message: %s", appErr.Message)
}
