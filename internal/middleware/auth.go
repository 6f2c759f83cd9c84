// Package middleware provides the HTTP middleware chain: authentication,
// request context, logging, tracing and rate limiting.
package middleware

import (
	"context"

	"feedline/internal/models"
	"feedline/internal/observability"
	"feedline/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID   = "userID"
	localIdentity = "identity"
)

// TokenValidator verifies an Authorization header value.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, header string) (*service.Identity, error)
}

// AuthRequired rejects requests without a valid access token and stores the
// caller's identity in the request locals.
func AuthRequired(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := v.ValidateAccessToken(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return models.RespondWithError(c, err)
		}
		setIdentity(c, identity)
		return c.Next()
	}
}

// AuthOptional behaves like AuthRequired when required is true. Otherwise
// requests without an Authorization header pass through anonymously, while a
// header that is present must still be valid.
func AuthOptional(v TokenValidator, required bool) fiber.Handler {
	strict := AuthRequired(v)
	return func(c *fiber.Ctx) error {
		if !required && c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return strict(c)
	}
}

// WebSocketAuth authenticates an upgrade request from the token query
// parameter or the Authorization header. When required is false, a request
// carrying neither connects anonymously.
func WebSocketAuth(v TokenValidator, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if token := c.Query("token"); token != "" {
			header = "Bearer " + token
		}
		if header == "" && !required {
			return c.Next()
		}

		identity, err := v.ValidateAccessToken(c.UserContext(), header)
		if err != nil {
			return models.RespondWithError(c, err)
		}
		setIdentity(c, identity)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, identity *service.Identity) {
	c.Locals(localUserID, identity.UserID)
	c.Locals(localIdentity, identity)
	c.SetUserContext(observability.WithUserID(c.UserContext(), identity.UserID))
}

// UserID returns the authenticated caller, or false for anonymous requests.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(localUserID).(uint)
	return id, ok && id != 0
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(c *fiber.Ctx) (*service.Identity, bool) {
	identity, ok := c.Locals(localIdentity).(*service.Identity)
	return identity, ok && identity != nil
}
