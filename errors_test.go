package allm

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryableTransportFailure(t *testing.T) {
	err := NewTransportFailure(ProviderOpenAI, errors.New("connection refused"))
	assert.True(t, err.Retryable())
}

func TestRetryableTimeout(t *testing.T) {
	err := NewTimeout(ProviderMistral, "mistral-small-latest")
	assert.True(t, err.Retryable())
}

func TestRetryableProviderRejected(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{401, false},
		{403, false},
		{404, false},
		{400, false},
	}
	for _, tc := range cases {
		err := NewProviderRejected(ProviderAnthropic, tc.status, "", nil)
		assert.Equal(t, tc.retryable, err.Retryable(), "status %d", tc.status)
	}
}

func TestRetryableHonorsRetryIn(t *testing.T) {
	err := NewProviderRejected(ProviderOpenAI, 418, "", nil)
	assert.False(t, err.Retryable())
	err.RetryIn = 1
	assert.True(t, err.Retryable())
}

func TestNonRetryableKinds(t *testing.T) {
	assert.False(t, NewKeyNotFound(ProviderGoogle, "gemini-2.0-flash").Retryable())
	assert.False(t, NewActorUnavailable(ProviderGoogle).Retryable())
	assert.False(t, NewMalformedResponse(ProviderGoogle, errors.New("empty body")).Retryable())
	assert.False(t, ErrShutdown.Retryable())
}

func TestIsRetryableUnwraps(t *testing.T) {
	inner := NewTimeout(ProviderOpenAI, "gpt-4o")
	wrapped := fmt.Errorf("attempt 1: %w", inner)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindKeyNotFound, KindOf(NewKeyNotFound(ProviderMistral, "")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestErrorMessageIncludesProviderAndModel(t *testing.T) {
	err := NewTimeout(ProviderAnthropic, "claude-sonnet-4-20250514")
	msg := err.Error()
	assert.Contains(t, msg, "timeout")
	assert.Contains(t, msg, "anthropic")
	assert.Contains(t, msg, "claude-sonnet-4-20250514")
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewTransportFailure(ProviderMistral, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestExhaustedErrorListsAttemptsInOrder(t *testing.T) {
	err := &ExhaustedError{Attempts: []Attempt{
		{Candidate: Candidate{Provider: ProviderOpenAI, Model: "gpt-4o"}, Err: NewTimeout(ProviderOpenAI, "gpt-4o")},
		{Candidate: Candidate{Provider: ProviderAnthropic, Model: "claude-sonnet-4-20250514"}, Err: NewKeyNotFound(ProviderAnthropic, "claude-sonnet-4-20250514")},
	}}
	msg := err.Error()
	assert.Contains(t, msg, "all 2 candidates failed")
	assert.Contains(t, msg, "openai/gpt-4o")
	assert.Contains(t, msg, "anthropic/claude-sonnet-4-20250514")
	assert.Less(t, strings.Index(msg, "openai/gpt-4o"), strings.Index(msg, "anthropic/claude-sonnet-4-20250514"))
}
