package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_WithMessage(t *testing.T) {
	err := ErrNotFound.WithMessage("No billing account found")

	assert.Equal(t, "No billing account found", err.Error())
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Equal(t, "Resource not found", ErrNotFound.Message, "sentinel is unchanged")
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", ErrInvalidInput.WithMessage("User id is required"))

	assert.True(t, errors.Is(wrapped, ErrInvalidInput))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, errors.New("INVALID_INPUT")))
}
