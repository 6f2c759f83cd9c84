package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKind_EveryKindHasStatus(t *testing.T) {
	for k := ErrorKind(0); k < kindCount; k++ {
		assert.NotZero(t, kindStatus[k], "kind %d has no status", k)
		assert.NotEmpty(t, kindNames[k], "kind %d has no name", k)
	}
}

func TestErrorKind_Status(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want int
	}{
		{KindValidation, 422},
		{KindAuth, 401},
		{KindNotFound, 404},
		{KindConflict, 409},
		{KindServer, 500},
		{ErrorKind(200), 500},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("loading post: %w", NewNotFoundError("Post", 7))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, KindServer, KindOf(errors.New("boom")))
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantFields int
	}{
		{
			name:       "validation with fields",
			err:        NewValidationError("Validation failed!", FieldError{Field: "email", Message: "must be a valid email"}),
			wantStatus: 422,
			wantMsg:    "Validation failed!",
			wantFields: 1,
		},
		{
			name:       "server error hides cause",
			err:        NewServerError("could not save post", errors.New("pq: connection refused")),
			wantStatus: 500,
			wantMsg:    "could not save post",
		},
		{
			name:       "fiber error keeps code",
			err:        fiber.NewError(fiber.StatusRequestEntityTooLarge, "too large"),
			wantStatus: 413,
			wantMsg:    "too large",
		},
		{
			name:       "unclassified",
			err:        errors.New("driver exploded"),
			wantStatus: 500,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return RespondWithError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			raw, _ := io.ReadAll(resp.Body)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Len(t, body.Errors, tt.wantFields)
			assert.NotContains(t, string(raw), "connection refused")
		})
	}
}

func TestPost_AttachCreator(t *testing.T) {
	p := &Post{ID: 1, UserID: 4, User: &User{ID: 4, Name: "Ada"}}
	p.AttachCreator()
	require.NotNil(t, p.Creator)
	assert.Equal(t, Creator{ID: 4, Name: "Ada"}, *p.Creator)

	bare := &Post{ID: 2}
	bare.AttachCreator()
	assert.Nil(t, bare.Creator)
}
