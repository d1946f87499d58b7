package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
)

type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewBadRequestError(message string, details any) *APIError {
	return &APIError{
		StatusCode: fiber.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		Details:    details,
	}
}

func NewNotFoundError(resource string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
	}
}

func NewConflictError(message string) *APIError {
	return &APIError{
		StatusCode: fiber.StatusConflict,
		Code:       "CONFLICT",
		Message:    message,
	}
}

func NewUnprocessableError(message string, details any) *APIError {
	return &APIError{
		StatusCode: fiber.StatusUnprocessableEntity,
		Code:       "UNPROCESSABLE_ENTITY",
		Message:    message,
		Details:    details,
	}
}

func NewTooManyRequestsError() *APIError {
	return &APIError{
		StatusCode: fiber.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    "too many requests",
	}
}

func NewInternalError(err error) *APIError {
	return &APIError{
		StatusCode: fiber.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "An internal error occurred",
		Details:    err.Error(), // Only in development
	}
}

// ErrorHandler is the app error handler. APIError values keep their status;
// fiber errors (404 routes, body limit) keep theirs; anything else is a 500.
func ErrorHandler(c fiber.Ctx, err error) error {
	var apiErr *APIError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &fiberErr):
		apiErr = &APIError{
			StatusCode: fiberErr.Code,
			Code:       fiberErrorCode(fiberErr.Code),
			Message:    fiberErr.Message,
		}
	default:
		apiErr = NewInternalError(err)
	}

	return c.Status(apiErr.StatusCode).JSON(apiErr)
}

func fiberErrorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	default:
		return "ERROR"
	}
}
