package seed

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"time"

	"feedline/internal/auth"
	"feedline/internal/models"
	"feedline/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db    *gorm.DB
	store storage.ObjectStore
	opts  Options
	rng   *rand.Rand
	faker *gofakeit.Faker
	// password hash shared by generated users
	defaultHash string
}

// NewFactory creates a new Factory bound to the provided Gorm DB and store.
func NewFactory(db *gorm.DB, store storage.ObjectStore, opts Options) *Factory {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	seed := time.Now().UnixNano()
	return &Factory{
		db:    db,
		store: store,
		opts:  opts,
		rng:   rand.New(rand.NewSource(seed)),
		faker: gofakeit.New(seed),
	}
}

func (f *Factory) hash(password string) (string, error) {
	if password == DefaultPassword && f.defaultHash != "" {
		return f.defaultHash, nil
	}
	h, err := auth.HashPassword(password, f.opts.BcryptCost)
	if err != nil {
		return "", err
	}
	if password == DefaultPassword {
		f.defaultHash = h
	}
	return h, nil
}

// BuildUser returns an unsaved user with fake identity data and DefaultPassword.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Name:   first + " " + last,
		Email:  strings.ToLower(fmt.Sprintf("%s.%s.%d@example.com", first, last, f.rng.Intn(100000))),
		Status: models.DefaultUserStatus,
	}
	user.Password = DefaultPassword
	for _, override := range overrides {
		override(user)
	}

	hash, err := f.hash(user.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hash
	return user, nil
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post owned by user with a backdated CreatedAt.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		Title:   strings.TrimSuffix(f.faker.Sentence(5), "."),
		Content: f.faker.Paragraph(1, 3, 8, "\n"),
		UserID:  user.ID,
	}

	daysBack := f.rng.Intn(f.opts.MaxDays)
	offset := time.Duration(daysBack)*24*time.Hour + time.Duration(f.rng.Intn(24*60))*time.Minute
	post.CreatedAt = time.Now().Add(-offset)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost uploads a generated image and persists the post that references it.
func (f *Factory) CreatePost(ctx context.Context, user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)

	if post.ImageKey == "" {
		img, err := f.Image(320, 240)
		if err != nil {
			return nil, err
		}
		key := storage.GenerateKey(f.faker.Word()+".png", time.Now())
		if err := f.store.Put(ctx, key, bytes.NewReader(img), "image/png"); err != nil {
			return nil, fmt.Errorf("upload seed image: %w", err)
		}
		post.ImageKey = key
	}

	if err := f.db.WithContext(ctx).Create(post).Error; err != nil {
		_ = f.store.Delete(context.WithoutCancel(ctx), post.ImageKey)
		return nil, err
	}
	post.User = user
	post.AttachCreator()
	post.ImageURL = f.store.URL(post.ImageKey)
	return post, nil
}

// Image renders a PNG with a random two-color gradient.
func (f *Factory) Image(width, height int) ([]byte, error) {
	from := color.RGBA{R: uint8(f.rng.Intn(256)), G: uint8(f.rng.Intn(256)), B: uint8(f.rng.Intn(256)), A: 255}
	to := color.RGBA{R: uint8(f.rng.Intn(256)), G: uint8(f.rng.Intn(256)), B: uint8(f.rng.Intn(256)), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		t := float64(x) / float64(width)
		c := color.RGBA{
			R: lerp(from.R, to.R, t),
			G: lerp(from.G, to.G, t),
			B: lerp(from.B, to.B, t),
			A: 255,
		}
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
