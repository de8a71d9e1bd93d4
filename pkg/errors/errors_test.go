package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrCapacityExhausted, "no seats for alice"))

	appErr := FromError(wrapped)

	assert.Equal(t, ErrCapacityExhausted.Code, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "no seats for alice", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))

	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, "internal server error: boom", appErr.Error())
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	clone := Clone(ErrInvalidConfiguration, "maxClasses must be positive")

	assert.Equal(t, "maxClasses must be positive", clone.Message)
	assert.Equal(t, "invalid assignment configuration", ErrInvalidConfiguration.Message)
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("redis down")
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "cache failed")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "cache failed: redis down", err.Error())
}
