package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", Clone(ErrNotFound, "course not found"))

	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "course not found", appErr.Message)
	assert.Nil(t, FromError(nil))
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
}

func TestClonedSentinelMatchesWithIs(t *testing.T) {
	err := Clone(ErrCacheMiss, "dashboard:admin")
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "cache miss", ErrCacheMiss.Message, "clone must not mutate the sentinel")
}

func TestInternalAndInvalidHelpers(t *testing.T) {
	cause := errors.New("connection reset")

	err := Internal(cause, "failed to load user")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)

	err = Invalid(cause, "invalid login payload")
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "invalid login payload: connection reset", err.Error())
}
