package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryExhaustedDoesNotWrapCause(t *testing.T) {
	cause := errors.New("serialization failure")
	err := NewRetryExhausted(4)

	assert.True(t, IsRetryExhausted(err))
	assert.NotErrorIs(t, err, cause)
	assert.Equal(t, 4, err.Details["attempts"])
}

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewNotFound("person", "abc"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryExhausted(err))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "caused by")
}

func TestUnmatchedQueryCarriesDiagnostics(t *testing.T) {
	err := NewUnmatchedQuery("InsertMany", "person")

	require.True(t, IsUnmatchedQuery(err))
	assert.Equal(t, "InsertMany", err.Details["op"])
	assert.Equal(t, "person", err.Details["record_type"])
	assert.Contains(t, err.Error(), "InsertMany")
	assert.Contains(t, err.Error(), "person")
}

func TestWithDetailAndCause(t *testing.T) {
	cause := errors.New("root")
	err := NewValidation("bad filter").WithDetail("field", "nickname").WithCause(cause)

	assert.Equal(t, "nickname", err.Details["field"])
	assert.ErrorIs(t, err, cause)
}
