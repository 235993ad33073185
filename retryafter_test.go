package allm

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func respWithRetryAfter(v string) *http.Response {
	h := http.Header{}
	if v != "" {
		h.Set("Retry-After", v)
	}
	return &http.Response{Header: h}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 30*time.Second, ParseRetryAfter(respWithRetryAfter("30")))
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(respWithRetryAfter(future))
	assert.Greater(t, d, 80*time.Second)
	assert.LessOrEqual(t, d, 90*time.Second)
}

func TestParseRetryAfterPastDateIsZero(t *testing.T) {
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), ParseRetryAfter(respWithRetryAfter(past)))
}

func TestParseRetryAfterAbsentOrInvalid(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(nil))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(respWithRetryAfter("")))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(respWithRetryAfter("soon")))
}
