// Package storage stores image payloads in an object store addressed by key.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that would escape the store namespace.
var ErrInvalidKey = errors.New("storage: invalid object key")

// ObjectStore uploads and deletes blobs by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the public address of key.
	URL(key string) string
	Ping(ctx context.Context) error
	Driver() string
}

const keyTimeLayout = "20060102T150405.000Z"

// GenerateKey derives an object key from the upload's original filename. The
// random segment keeps identical filenames uploaded in the same millisecond apart.
func GenerateKey(filename string, now time.Time) string {
	id := uuid.New()
	return now.UTC().Format(keyTimeLayout) + "-" + hex.EncodeToString(id[:4]) + "-" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "image"
	}
	return out
}

func validKey(key string) bool {
	return key != "" &&
		!strings.Contains(key, "..") &&
		!strings.HasPrefix(key, "/") &&
		!strings.ContainsAny(key, "\\\x00")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
