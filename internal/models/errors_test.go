package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", "abc"), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"conflict", NewConflictError("dup", nil), fiber.StatusConflict},
		{"store", NewStoreError("create post", errors.New("boom")), fiber.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("outer: %w", NewNotFoundError("Post", 1)), fiber.StatusNotFound},
		{"plain error", errors.New("plain"), fiber.StatusInternalServerError},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestAppError_UnwrapAndHelpers(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError("list posts", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(NewNotFoundError("Post", "x")))
	assert.True(t, IsConflict(fmt.Errorf("wrap: %w", NewConflictError("dup", cause))))
	assert.Equal(t, "Post with ID x not found", NewNotFoundError("Post", "x").Error())
}
