package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"feedline/internal/models"
	"feedline/internal/observability"
	"feedline/internal/repository"
	"feedline/internal/storage"
	"feedline/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// PerPage is the fixed feed page size.
const PerPage = 3

// EventPost is the realtime event name carrying post changes.
const EventPost = "post"

const (
	PostEventCreate = "create"
	PostEventUpdate = "update"
	PostEventDelete = "delete"
)

// AllowedImageTypes lists the accepted upload content types.
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpg":  true,
	"image/jpeg": true,
	"image/JPG":  true,
}

// Publisher delivers realtime events to connected clients.
type Publisher interface {
	Emit(ctx context.Context, event string, data any) error
}

// PostEvent is the payload of a "post" event.
type PostEvent struct {
	Type   string       `json:"type"`
	Post   *models.Post `json:"post,omitempty"`
	PostID uint         `json:"postId,omitempty"`
}

// ImageUpload is an image received with a create or update request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type CreatePostInput struct {
	CallerID uint
	Title    string       `json:"title" validate:"min=5"`
	Content  string       `json:"content" validate:"min=5"`
	Image    *ImageUpload `json:"-"`
}

type UpdatePostInput struct {
	CallerID uint
	PostID   uint
	Title    string `json:"title" validate:"min=5"`
	Content  string `json:"content" validate:"min=5"`
	// Image is optional; nil keeps the current image.
	Image *ImageUpload `json:"-"`
}

type PostPage struct {
	Posts      []models.Post `json:"posts"`
	TotalItems int64         `json:"totalItems"`
	PerPage    int           `json:"perPage"`
}

type CreatePostResult struct {
	Post    *models.Post
	Creator *models.User
}

type DeletePostResult struct {
	Post *models.Post
	// DeleteFromS3 is false when the blob could not be removed. The post is
	// gone either way.
	DeleteFromS3 bool
}

type PostService struct {
	posts     repository.PostRepository
	users     repository.UserRepository
	store     storage.ObjectStore
	publisher Publisher
	now       func() time.Time
}

// NewPostService requires every collaborator, including the publisher, so
// mutations always reach realtime subscribers.
func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	store storage.ObjectStore,
	publisher Publisher,
) (*PostService, error) {
	switch {
	case posts == nil || users == nil:
		return nil, errors.New("post service: repositories are required")
	case store == nil:
		return nil, errors.New("post service: object store is required")
	case publisher == nil:
		return nil, errors.New("post service: publisher is required")
	}
	return &PostService{
		posts:     posts,
		users:     users,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}, nil
}

func (s *PostService) ListPosts(ctx context.Context, page int) (_ *PostPage, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.ListPosts", attribute.Int("page", page))
	defer func() { observability.EndSpan(span, err) }()

	if page < 1 {
		page = 1
	}
	total, err := s.posts.Count(ctx)
	if err != nil {
		return nil, err
	}
	// Any page past the data is empty, so clamp to the first such page and
	// keep the offset from overflowing.
	if beyond := int((total+PerPage-1)/PerPage) + 1; page > beyond {
		page = beyond
	}
	posts, err := s.posts.List(ctx, PerPage, (page-1)*PerPage)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		s.decorate(&posts[i])
	}
	return &PostPage{Posts: posts, TotalItems: total, PerPage: PerPage}, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorate(post)
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (_ *CreatePostResult, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.CreatePost", attribute.Int64("user.id", int64(in.CallerID)))
	defer func() { observability.EndSpan(span, err) }()

	validation.Trim(&in.Title, &in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validateImage(in.Image); err != nil {
		return nil, err
	}
	if in.CallerID == 0 {
		return nil, models.NewAuthError("Not authenticated")
	}

	owner, err := s.users.GetByID(ctx, in.CallerID)
	if err != nil {
		return nil, err
	}

	key, err := s.upload(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:    in.Title,
		Content:  in.Content,
		ImageKey: key,
		UserID:   owner.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.discard(ctx, key)
		return nil, err
	}
	post.User = owner
	post.AttachCreator()
	s.decorate(post)

	ids, err := s.users.ListPostIDs(ctx, owner.ID)
	if err != nil {
		observability.Logger.WarnContext(ctx, "failed to list owner posts",
			slog.Uint64("user_id", uint64(owner.ID)), slog.String("error", err.Error()))
	}
	owner.PostIDs = ids

	s.emit(ctx, PostEvent{Type: PostEventCreate, Post: post})
	return &CreatePostResult{Post: post, Creator: owner}, nil
}

// UpdatePost replaces the title, content and optionally the image of a post
// owned by the caller. A new image is stored before the record changes and
// the old one is removed only after the record points at the new key.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.UpdatePost",
		attribute.Int64("post.id", int64(in.PostID)),
		attribute.Int64("user.id", int64(in.CallerID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	validation.Trim(&in.Title, &in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Image != nil {
		if err := validateImage(in.Image); err != nil {
			return nil, err
		}
	}

	post, err := s.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.CallerID {
		return nil, models.NewAuthError("Not authorized")
	}

	oldKey := post.ImageKey
	newKey := ""
	if in.Image != nil {
		if newKey, err = s.upload(ctx, in.Image); err != nil {
			return nil, err
		}
		post.ImageKey = newKey
	}
	post.Title = in.Title
	post.Content = in.Content

	if err := s.posts.Update(ctx, post); err != nil {
		if newKey != "" {
			s.discard(ctx, newKey)
		}
		return nil, err
	}
	if newKey != "" && oldKey != "" && oldKey != newKey {
		s.discard(ctx, oldKey)
	}

	if fresh, err := s.posts.GetByID(ctx, post.ID); err == nil {
		post = fresh
	}
	s.decorate(post)

	s.emit(ctx, PostEvent{Type: PostEventUpdate, Post: post})
	return post, nil
}

// DeletePost removes a post owned by the caller and then its image. A missing
// post is reported before ownership is checked.
func (s *PostService) DeletePost(ctx context.Context, callerID, postID uint) (_ *DeletePostResult, err error) {
	ctx, span := observability.StartSpan(ctx, "PostService.DeletePost",
		attribute.Int64("post.id", int64(postID)),
		attribute.Int64("user.id", int64(callerID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != callerID {
		return nil, models.NewAuthError("Not authorized")
	}

	if err := s.posts.Delete(ctx, post.ID); err != nil {
		return nil, err
	}
	s.decorate(post)

	deleted := s.discard(ctx, post.ImageKey)
	s.emit(ctx, PostEvent{Type: PostEventDelete, PostID: post.ID})
	return &DeletePostResult{Post: post, DeleteFromS3: deleted}, nil
}

func validateImage(img *ImageUpload) error {
	if img == nil || img.Body == nil {
		return models.NewValidationError("No image provided",
			models.FieldError{Field: "images", Message: "is required"})
	}
	if !AllowedImageTypes[img.ContentType] {
		return models.NewValidationError("Unsupported image type",
			models.FieldError{Field: "images", Message: "must be a png, jpg or jpeg image"})
	}
	return nil
}

func (s *PostService) upload(ctx context.Context, img *ImageUpload) (string, error) {
	key := storage.GenerateKey(img.Filename, s.now())
	if err := s.store.Put(ctx, key, img.Body, img.ContentType); err != nil {
		return "", models.NewServerError("failed to store image", err)
	}
	return key, nil
}

// discard deletes a blob the caller no longer references. Failures are
// logged and reported as false.
func (s *PostService) discard(ctx context.Context, key string) bool {
	if key == "" {
		return true
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		observability.Logger.WarnContext(ctx, "failed to delete image",
			slog.String("key", key),
			slog.String("driver", s.store.Driver()),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (s *PostService) emit(ctx context.Context, ev PostEvent) {
	if err := s.publisher.Emit(ctx, EventPost, ev); err != nil {
		observability.Logger.WarnContext(ctx, "failed to publish post event",
			slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

func (s *PostService) decorate(p *models.Post) {
	if p.Creator == nil {
		p.AttachCreator()
	}
	if p.ImageKey != "" {
		p.ImageURL = s.store.URL(p.ImageKey)
	}
}
