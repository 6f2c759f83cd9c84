package server

import (
	"encoding/json"
	"errors"
	"strings"

	"feedline/internal/auth"
	"feedline/internal/middleware"
	"feedline/internal/models"
	"feedline/internal/service"

	"github.com/gofiber/fiber/v2"
)

// bodyError turns a body decoding failure into a validation error naming the
// offending field when the decoder reports one.
func bodyError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return models.NewValidationError("Validation failed!", models.FieldError{
			Field:   typeErr.Field,
			Message: "must be a " + typeErr.Type.String(),
		})
	}
	return models.NewValidationError("Invalid request body")
}

// Signup handles PUT /user/signup
// @Summary User signup
// @Description Register a new user account
// @Tags user
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} object{message=string,user=models.User}
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /user/signup [put]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, bodyError(err))
	}

	user, err := s.authService.Signup(c.UserContext(), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created!",
		"user":    user,
	})
}

// Login handles POST /user/login
// @Summary User login
// @Description Exchange credentials for an access and refresh token pair
// @Tags user
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login request"
// @Success 200 {object} service.LoginResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /user/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, bodyError(err))
	}

	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(res)
}

// GetStatus handles GET /user/status/:userId
// @Summary Get a user's status
// @Tags user
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} object{status=string}
// @Failure 404 {object} models.ErrorResponse
// @Router /user/status/{userId} [get]
func (s *Server) GetStatus(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	status, err := s.authService.GetStatus(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"status": status})
}

// UpdateStatus handles PUT /user/updatestatus
// @Summary Update the caller's status
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateStatusInput true "New status"
// @Success 201 {object} object{message=string,body=object{status=string}}
// @Failure 401 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /user/updatestatus [put]
func (s *Server) UpdateStatus(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	var req service.UpdateStatusInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, bodyError(err))
	}

	user, err := s.authService.UpdateStatus(c.UserContext(), userID, req)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Status updated!",
		"body":    fiber.Map{"status": user.Status},
	})
}

// refreshTokenFrom reads the refresh token from the Authorization header, or
// from a refreshToken body field with or without the Bearer prefix.
func refreshTokenFrom(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		token, _ := auth.BearerToken(header)
		return token
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.BodyParser(&body); err != nil {
		return ""
	}
	token := strings.TrimSpace(body.RefreshToken)
	if bearer, ok := auth.BearerToken(token); ok {
		return bearer
	}
	return token
}

// Refresh handles PUT /user/refresh/:userId
// @Summary Rotate the refresh token
// @Description Exchanges the current refresh token for a new token pair. The presented token stops working.
// @Tags user
// @Produce json
// @Param userId path int true "User ID"
// @Param Authorization header string false "Bearer refresh token"
// @Success 200 {object} service.RefreshResult
// @Failure 401 {object} models.ErrorResponse
// @Router /user/refresh/{userId} [put]
func (s *Server) Refresh(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return models.RespondWithError(c, err)
	}

	res, err := s.authService.Refresh(c.UserContext(), userID, refreshTokenFrom(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(res)
}

// Logout handles DELETE /user/logout/:userId
// @Summary Log out
// @Description Deletes the user's refresh token and revokes the presented access token
// @Tags user
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /user/logout/{userId} [delete]
func (s *Server) Logout(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return models.RespondWithError(c, err)
	}
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return models.RespondWithError(c, models.NewAuthError("Not authenticated"))
	}

	if err := s.authService.Logout(c.UserContext(), userID, *identity); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}
