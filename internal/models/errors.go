package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeConflict   = "CONFLICT"
	CodeStore      = "STORE_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// ErrorResponse is the problem-details body returned to API callers.
type ErrorResponse struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
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

// NewNotFoundError reports that resource id is absent.
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Err:     err,
	}
}

// NewStoreError wraps any lower-level persistence failure.
func NewStoreError(op string, err error) *AppError {
	return &AppError{
		Code:    CodeStore,
		Message: "store failure during " + op,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

func IsConflict(err error) bool { return HasCode(err, CodeConflict) }

// StatusFor maps an error to the HTTP status a caller should render.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes err as a problem-details JSON body. Errors that are
// not AppErrors, and store failures, are rendered as a generic internal error.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{
		Type:     "about:blank",
		Title:    "Unexpected Internal Error",
		Status:   status,
		Detail:   "Generic internal error occurred.",
		Instance: c.Path(),
	}

	var appErr *AppError
	if errors.As(err, &appErr) && status < fiber.StatusInternalServerError {
		response.Title = titleFor(appErr.Code)
		response.Detail = appErr.Message
		response.Code = appErr.Code
	}

	return c.Status(status).JSON(response)
}

func titleFor(code string) string {
	switch code {
	case CodeNotFound:
		return "Snap not found"
	case CodeValidation:
		return "Invalid request"
	case CodeConflict:
		return "Conflict"
	default:
		return "Unexpected Internal Error"
	}
}
