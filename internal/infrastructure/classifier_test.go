package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		diagnostic string
		message   string
		retryable bool
	}{
		{
			name:       "rate limited",
			diagnostic: "HTTP Error 429: Too Many Requests",
			message:    "rate limited by server",
			retryable:  true,
		},
		{
			name:       "private video",
			diagnostic: "This video is private",
			message:    "content is unavailable",
			retryable:  false,
		},
		{
			name:       "unavailable",
			diagnostic: "ERROR: Video unavailable",
			message:    "content is unavailable",
			retryable:  false,
		},
		{
			name:       "geo restricted",
			diagnostic: "The uploader has not made this video available in your country",
			message:    "content is unavailable",
			retryable:  false,
		},
		{
			name:       "age gate",
			diagnostic: "Sign in to confirm your age. This video may be inappropriate for some users.",
			message:    "content is unavailable",
			retryable:  false,
		},
		{
			name:       "unsupported url",
			diagnostic: "ERROR: Unsupported URL: https://example.com/nothing",
			message:    "unsupported or malformed URL",
			retryable:  false,
		},
		{
			name:       "malformed id",
			diagnostic: "ERROR: 'xyz' is not a valid URL",
			message:    "unsupported or malformed URL",
			retryable:  false,
		},
		{
			name:       "not found",
			diagnostic: "ERROR: HTTP Error 404: Not Found",
			message:    "content not found",
			retryable:  false,
		},
		{
			name:       "forbidden",
			diagnostic: "ERROR: unable to download video data: HTTP Error 403: Forbidden",
			message:    "access denied by server",
			retryable:  true,
		},
		{
			name:       "timeout",
			diagnostic: "ERROR: Unable to download webpage: The read operation timed out",
			message:    "request timed out",
			retryable:  true,
		},
		{
			name:       "connection reset",
			diagnostic: "ERROR: Connection reset by peer",
			message:    "network error",
			retryable:  true,
		},
		{
			name:       "tls failure",
			diagnostic: "ERROR: SSL: CERTIFICATE_VERIFY_FAILED",
			message:    "network error",
			retryable:  true,
		},
		{
			name:       "interrupted transfer",
			diagnostic: "ERROR: Incomplete read: got 1024 of 2048 bytes",
			message:    "transfer interrupted by server",
			retryable:  true,
		},
		{
			name:       "unknown is conservatively fatal",
			diagnostic: "something entirely novel went wrong",
			message:    "download failed",
			retryable:  false,
		},
		{
			name:       "empty",
			diagnostic: "",
			message:    "download failed",
			retryable:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			message, retryable := Classify(tt.diagnostic)
			assert.Equal(t, tt.message, message)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

// Overlapping keyword sets are resolved by rule order: "private" is listed
// before the 403 bucket, so a diagnostic containing both stays fatal.
func TestClassify_PriorityOrder(t *testing.T) {
	message, retryable := Classify("HTTP Error 403: Forbidden: this video is private")
	assert.Equal(t, "content is unavailable", message)
	assert.False(t, retryable)

	// Generic timeout wording is checked before the broader network bucket.
	message, retryable = Classify("network request timed out")
	assert.Equal(t, "request timed out", message)
	assert.True(t, retryable)
}
