package models

import (
	"errors"
	"fmt"
	"log/slog"

	"feedline/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies failures surfaced to API callers.
type ErrorKind uint8

const (
	KindServer ErrorKind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindConflict

	kindCount
)

var kindStatus = [kindCount]int{
	KindServer:     fiber.StatusInternalServerError,
	KindValidation: fiber.StatusUnprocessableEntity,
	KindAuth:       fiber.StatusUnauthorized,
	KindNotFound:   fiber.StatusNotFound,
	KindConflict:   fiber.StatusConflict,
}

var kindNames = [kindCount]string{
	KindServer:     "server",
	KindValidation: "validation",
	KindAuth:       "auth",
	KindNotFound:   "not_found",
	KindConflict:   "conflict",
}

// Status returns the HTTP status code for the kind.
func (k ErrorKind) Status() int {
	if k >= kindCount {
		return fiber.StatusInternalServerError
	}
	return kindStatus[k]
}

func (k ErrorKind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// AppError represents a classified application error
type AppError struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code mapped from the error kind.
func (e *AppError) Status() int {
	return e.Kind.Status()
}

func NewValidationError(message string, fields ...FieldError) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

func NewAuthError(message string) *AppError {
	return &AppError{Kind: KindAuth, Message: message}
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// NewServerError hides err from the response body but keeps it for logging.
func NewServerError(message string, err error) *AppError {
	return &AppError{Kind: KindServer, Message: message, Err: err}
}

// KindOf reports the kind of err, treating unclassified errors as server errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindServer
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// RespondWithError writes the {message} body with the status mapped from err.
func RespondWithError(c *fiber.Ctx, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == KindServer {
			observability.Logger.ErrorContext(c.UserContext(), "request failed",
				slog.String("path", c.Path()),
				slog.String("error", appErr.Error()),
			)
		}
		return c.Status(appErr.Status()).JSON(ErrorResponse{
			Message: appErr.Message,
			Errors:  appErr.Fields,
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(ErrorResponse{Message: fiberErr.Message})
	}

	observability.Logger.ErrorContext(c.UserContext(), "unclassified error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Message: "internal server error",
	})
}
