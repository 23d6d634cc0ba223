package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with DexError
	dexErr := New(ErrCodeFileNotFound, "file not found: test.md", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, dexErr)
	assert.Equal(t, originalErr, errors.Unwrap(dexErr))
	assert.True(t, errors.Is(dexErr, originalErr))
}

func TestDexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "file error",
			code:     ErrCodeFileNotFound,
			message:  "notes.md not found",
			expected: "[ERR_201_FILE_NOT_FOUND] notes.md not found",
		},
		{
			name:     "provider error",
			code:     ErrCodeProviderTimeout,
			message:  "request timed out",
			expected: "[ERR_301_PROVIDER_TIMEOUT] request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestDexError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file A not found", nil)
	err2 := New(ErrCodeFileNotFound, "file B not found", nil)

	assert.True(t, errors.Is(err1, err2))
}

func TestDexError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrCodeFileNotFound, "file not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	assert.False(t, errors.Is(err1, err2))
}

func TestDexError_WithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeFileNotFound, "file not found", nil)

	err = err.WithDetail("path", "/docs/notes.md")
	err = err.WithDetail("collection", "docs")

	assert.Equal(t, "/docs/notes.md", err.Details["path"])
	assert.Equal(t, "docs", err.Details["collection"])
}

func TestDexError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryIO},
		{ErrCodeIndexLocked, CategoryIO},
		{ErrCodeProviderTimeout, CategoryNetwork},
		{ErrCodeProviderUnavailable, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeEmbeddingFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestDexError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeProviderTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeIndexLocked, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestDexError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeProviderTimeout, true},
		{ErrCodeProviderUnavailable, true},
		{ErrCodeIndexLocked, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCorruptIndex, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesDexErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")

	dexErr := Wrap(ErrCodeInternal, originalErr)

	require.NotNil(t, dexErr)
	assert.Equal(t, ErrCodeInternal, dexErr.Code)
	assert.Equal(t, "something went wrong", dexErr.Message)
	assert.Equal(t, originalErr, dexErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestStoreError_CreatesIOCategoryError(t *testing.T) {
	err := StoreError("cannot open database", nil)

	assert.Equal(t, CategoryIO, err.Category)
}

func TestProviderError_CreatesRetryableError(t *testing.T) {
	err := ProviderError("connection refused", nil)

	assert.Equal(t, CategoryNetwork, err.Category)
	assert.True(t, err.Retryable)
}

func TestValidationError_CreatesValidationCategoryError(t *testing.T) {
	err := ValidationError("query cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable DexError",
			err:      New(ErrCodeProviderTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable DexError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeProviderTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestProviderFailure_ClassifiesDeadlineExpiry(t *testing.T) {
	timedOut := ProviderFailure("embeddings request failed", context.DeadlineExceeded)
	assert.Equal(t, ErrCodeProviderTimeout, timedOut.Code)
	assert.True(t, timedOut.Retryable)

	wrapped := ProviderFailure("embeddings request failed",
		fmt.Errorf("call: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeProviderTimeout, wrapped.Code)

	refused := ProviderFailure("connection refused", errors.New("dial tcp: refused"))
	assert.Equal(t, ErrCodeProviderUnavailable, refused.Code)
	assert.True(t, refused.Retryable)
}
