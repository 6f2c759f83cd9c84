// Package service holds the application's business operations.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"feedline/internal/auth"
	"feedline/internal/cache"
	"feedline/internal/models"
	"feedline/internal/observability"
	"feedline/internal/repository"
	"feedline/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type AuthService struct {
	users      repository.UserRepository
	tokens     repository.TokenRepository
	tm         *auth.TokenManager
	revoked    *cache.Cache
	bcryptCost int
	accessTTL  time.Duration
}

type SignupInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
	Name     string `json:"name" form:"name" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

type UpdateStatusInput struct {
	Status *string `json:"status" validate:"required,max=255"`
}

type LoginResult struct {
	Email           string `json:"email"`
	UserID          uint   `json:"userId"`
	Token           string `json:"token"`
	RefreshToken    string `json:"refreshToken"`
	TokenExpiration int    `json:"tokenExpiration"`
}

type RefreshResult struct {
	Token           string `json:"token"`
	RefreshToken    string `json:"refreshToken"`
	UserID          uint   `json:"userId"`
	TokenExpiration int    `json:"tokenExpiration"`
}

// Identity is the verified caller behind an access token.
type Identity struct {
	UserID    uint
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// NewAuthService wires the auth flows. revoked may be nil, which disables
// access-token revocation on logout.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	tm *auth.TokenManager,
	revoked *cache.Cache,
	bcryptCost int,
	accessTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		tm:         tm,
		revoked:    revoked,
		bcryptCost: bcryptCost,
		accessTTL:  accessTTL,
	}
}

// tokenExpiration is the access token lifetime in whole hours, as clients
// expect it.
func (s *AuthService) tokenExpiration() int {
	return int(math.Ceil(s.accessTTL.Hours()))
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (_ *models.User, err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService.Signup")
	defer func() { observability.EndSpan(span, err) }()

	validation.Trim(&in.Email, &in.Password, &in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, models.NewServerError("failed to create user", err)
	}

	user := &models.User{
		Email:    in.Email,
		Password: hash,
		Name:     in.Name,
		Status:   models.DefaultUserStatus,
		PostIDs:  []uint{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	observability.RecordAuthEvent("signup", nil)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService.Login")
	defer func() {
		observability.RecordAuthEvent("login", err)
		observability.EndSpan(span, err)
	}()

	validation.Trim(&in.Email, &in.Password)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.Password, in.Password) {
		return nil, models.NewAuthError("invalid email or password")
	}

	pair, err := s.issue(ctx, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashRefreshToken(pair.RefreshToken, s.bcryptCost)
	if err != nil {
		return nil, models.NewServerError("failed to start session", err)
	}
	if err := s.tokens.Upsert(ctx, user.ID, hash); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", int64(user.ID)))
	return &LoginResult{
		Email:           user.Email,
		UserID:          user.ID,
		Token:           pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		TokenExpiration: s.tokenExpiration(),
	}, nil
}

func (s *AuthService) issue(ctx context.Context, userID uint, email string) (auth.TokenPair, error) {
	pair, err := s.tm.IssuePair(userID, email)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "token signing failed", slog.String("error", err.Error()))
		return auth.TokenPair{}, models.NewServerError("failed to issue tokens", err)
	}
	return pair, nil
}

// ValidateAccessToken verifies an Authorization header value and returns the
// caller's identity.
func (s *AuthService) ValidateAccessToken(ctx context.Context, header string) (*Identity, error) {
	if header == "" {
		return nil, models.NewAuthError("Not authenticated")
	}
	token, ok := auth.BearerToken(header)
	if !ok {
		return nil, models.NewAuthError("Invalid authorization header format")
	}

	claims, err := s.tm.ParseAccess(token)
	if err != nil {
		return nil, &models.AppError{Kind: models.KindAuth, Message: "Invalid or expired token", Err: err}
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, &models.AppError{Kind: models.KindAuth, Message: "Invalid or expired token", Err: err}
	}

	revoked, err := s.revoked.Marked(ctx, cache.RevokedJTIKey(claims.ID))
	if err != nil {
		observability.Logger.WarnContext(ctx, "revocation check failed", slog.String("error", err.Error()))
	}
	if revoked {
		return nil, models.NewAuthError("Token has been revoked")
	}

	identity := &Identity{UserID: userID, Email: claims.Email, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// Refresh exchanges the user's current refresh token for a new pair. The
// presented token stops working once this succeeds.
func (s *AuthService) Refresh(ctx context.Context, userID uint, presented string) (_ *RefreshResult, err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService.Refresh", attribute.Int64("user.id", int64(userID)))
	defer func() {
		observability.RecordAuthEvent("refresh", err)
		observability.EndSpan(span, err)
	}()

	token := strings.TrimSpace(presented)
	if token == "" || strings.ContainsAny(token, " \t") {
		return nil, models.NewAuthError("Authentication failed")
	}

	record, err := s.tokens.GetByUserID(ctx, userID)
	if err != nil {
		if models.IsKind(err, models.KindNotFound) {
			return nil, models.NewAuthError("Authentication failed")
		}
		return nil, err
	}
	if !auth.CheckRefreshToken(record.TokenHash, token) {
		return nil, models.NewAuthError("Authentication failed")
	}

	claims, err := s.tm.ParseRefresh(token)
	if err != nil {
		return nil, &models.AppError{Kind: models.KindAuth, Message: "Authentication failed", Err: err}
	}
	if sub, err := claims.UserID(); err != nil || sub != userID {
		return nil, models.NewAuthError("Authentication failed")
	}

	pair, err := s.issue(ctx, userID, claims.Email)
	if err != nil {
		return nil, err
	}
	newHash, err := auth.HashRefreshToken(pair.RefreshToken, s.bcryptCost)
	if err != nil {
		return nil, models.NewServerError("failed to rotate session", err)
	}

	rotated, err := s.tokens.Rotate(ctx, userID, record.TokenHash, newHash)
	if err != nil {
		return nil, err
	}
	if !rotated {
		return nil, models.NewAuthError("Refresh token already used")
	}

	return &RefreshResult{
		Token:           pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		UserID:          userID,
		TokenExpiration: s.tokenExpiration(),
	}, nil
}

// Logout ends the session of userID. The caller may only end their own session.
func (s *AuthService) Logout(ctx context.Context, userID uint, caller Identity) (err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService.Logout", attribute.Int64("user.id", int64(userID)))
	defer func() {
		observability.RecordAuthEvent("logout", err)
		observability.EndSpan(span, err)
	}()

	if caller.UserID != userID {
		return models.NewAuthError("Not authorized to end this session")
	}

	existed, err := s.tokens.DeleteByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if !existed {
		return models.NewServerError("No active session", errors.New("refresh token record missing"))
	}

	if caller.TokenID != "" {
		ttl := time.Until(caller.ExpiresAt)
		if err := s.revoked.Mark(ctx, cache.RevokedJTIKey(caller.TokenID), ttl); err != nil {
			observability.Logger.WarnContext(ctx, "failed to revoke access token", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *AuthService) UpdateStatus(ctx context.Context, userID uint, in UpdateStatusInput) (*models.User, error) {
	if in.Status != nil {
		trimmed := strings.TrimSpace(*in.Status)
		in.Status = &trimmed
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if err := s.users.UpdateStatus(ctx, userID, *in.Status); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) GetStatus(ctx context.Context, userID uint) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Status, nil
}
