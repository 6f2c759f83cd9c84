package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedline/internal/models"
	"feedline/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validatorStub accepts "Bearer good" as user 123.
type validatorStub struct{}

func (validatorStub) ValidateAccessToken(_ context.Context, header string) (*service.Identity, error) {
	switch header {
	case "Bearer good":
		return &service.Identity{UserID: 123, TokenID: "jti-1"}, nil
	case "":
		return nil, models.NewAuthError("Not authenticated")
	default:
		return nil, models.NewAuthError("Invalid or expired token")
	}
}

func newAuthApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/test", handler, func(c *fiber.Ctx) error {
		uid, ok := UserID(c)
		return c.JSON(fiber.Map{"userID": uid, "authenticated": ok})
	})
	return app
}

type authBody struct {
	UserID        uint `json:"userID"`
	Authenticated bool `json:"authenticated"`
}

func doAuth(t *testing.T, app *fiber.App, target, header string) (int, authBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body authBody
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp.StatusCode, body
}

func TestAuthRequired(t *testing.T) {
	app := newAuthApp(AuthRequired(validatorStub{}))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID uint
	}{
		{name: "Happy Path", authHeader: "Bearer good", expectedStatus: http.StatusOK, expectedUserID: 123},
		{name: "Missing Header", expectedStatus: http.StatusUnauthorized},
		{name: "Invalid Token", authHeader: "Bearer bad", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doAuth(t, app, "/test", tt.authHeader)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Equal(t, tt.expectedUserID, body.UserID)
		})
	}
}

func TestAuthOptional(t *testing.T) {
	open := newAuthApp(AuthOptional(validatorStub{}, false))

	status, body := doAuth(t, open, "/test", "")
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, body.Authenticated)

	status, body = doAuth(t, open, "/test", "Bearer good")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Authenticated)

	status, _ = doAuth(t, open, "/test", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, status, "a bad token is never treated as anonymous")

	strict := newAuthApp(AuthOptional(validatorStub{}, true))
	status, _ = doAuth(t, strict, "/test", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWebSocketAuth(t *testing.T) {
	app := newAuthApp(WebSocketAuth(validatorStub{}, false))

	status, body := doAuth(t, app, "/test?token=good", "")
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 123, body.UserID)

	status, body = doAuth(t, app, "/test", "")
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, body.Authenticated)

	status, _ = doAuth(t, app, "/test?token=bad", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	required := newAuthApp(WebSocketAuth(validatorStub{}, true))
	status, _ = doAuth(t, required, "/test", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}
