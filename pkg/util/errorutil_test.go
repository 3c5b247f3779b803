package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"validation", NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{"not found", NewNotFound("thread", nil), "NOT_FOUND", http.StatusNotFound},
		{"unauthorized", NewUnauthorized("no session"), "UNAUTHORIZED", http.StatusUnauthorized},
		{"state conflict", NewStateConflict("superseded", nil), "STATE_CONFLICT", http.StatusConflict},
		{"upstream", NewUpstreamError("send", errors.New("boom")), "UPSTREAM_FAILED", http.StatusBadGateway},
		{"internal", NewInternalError(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			assert.Equal(t, tc.wantCode, de.Code)
			assert.Equal(t, tc.wantStatus, de.HTTPStatus)
		})
	}
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)

	assert.Nil(t, ToDomainError(nil))
}

func TestToDomainErrorUnwrapsThroughChain(t *testing.T) {
	inner := NewStateConflict("superseded", nil)
	wrapped := fmt.Errorf("open thread: %w", inner)

	de := ToDomainError(wrapped)
	require.NotNil(t, de)
	assert.Equal(t, "STATE_CONFLICT", de.Code)
}

func TestUpstreamErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamError("history fetch", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "history fetch")
}
