package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesTemplate(t *testing.T) {
	err := Clone(ErrNotFound, "expediente not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "expediente not found", err.Error())
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)

	wrapped := fmt.Errorf("context: %w", ErrInvalidTransition)
	assert.Equal(t, ErrInvalidTransition.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}

func TestErrorCacheMissIsComparable(t *testing.T) {
	err := fmt.Errorf("redis: %w", ErrCacheMiss)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}
