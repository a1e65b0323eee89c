package httpclient

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsHTTPStatusCodeRetryable(t *testing.T) {
	t.Run("429 is retryable", func(t *testing.T) {
		require.True(t, IsHTTPStatusCodeRetryable(429))
	})

	t.Run("4xx errors (except 429) are not retryable", func(t *testing.T) {
		require.False(t, IsHTTPStatusCodeRetryable(400))
		require.False(t, IsHTTPStatusCodeRetryable(401))
		require.False(t, IsHTTPStatusCodeRetryable(403))
		require.False(t, IsHTTPStatusCodeRetryable(404))
		require.False(t, IsHTTPStatusCodeRetryable(422))
	})

	t.Run("5xx errors are retryable", func(t *testing.T) {
		require.True(t, IsHTTPStatusCodeRetryable(500))
		require.True(t, IsHTTPStatusCodeRetryable(502))
		require.True(t, IsHTTPStatusCodeRetryable(503))
		require.True(t, IsHTTPStatusCodeRetryable(504))
	})

	t.Run("non-error status codes are not retryable", func(t *testing.T) {
		require.False(t, IsHTTPStatusCodeRetryable(200))
		require.False(t, IsHTTPStatusCodeRetryable(201))
		require.False(t, IsHTTPStatusCodeRetryable(301))
		require.False(t, IsHTTPStatusCodeRetryable(302))
	})
}

func TestMaskSensitiveHeaders(t *testing.T) {
	headers := http.Header{
		"Content-Type":  []string{"application/json"},
		"Authorization": []string{"Bearer secret"},
		"X-Api-Key":     []string{"secret-key"},
	}

	masked := MaskSensitiveHeaders(headers)

	require.Equal(t, []string{"application/json"}, masked["Content-Type"])
	require.Equal(t, []string{"******"}, masked["Authorization"])
	require.Equal(t, []string{"******"}, masked["X-Api-Key"])

	// Input headers are untouched.
	require.Equal(t, []string{"Bearer secret"}, headers["Authorization"])
}

func TestMergeHTTPHeaders(t *testing.T) {
	dest := http.Header{
		"Content-Type": []string{"application/json"},
	}
	src := http.Header{
		"Content-Type":  []string{"text/plain"},
		"X-Extra":       []string{"value"},
		"Authorization": []string{"Bearer secret"},
	}

	merged := MergeHTTPHeaders(dest, src)

	require.Equal(t, []string{"application/json"}, merged["Content-Type"])
	require.Equal(t, []string{"value"}, merged["X-Extra"])
	require.NotContains(t, merged, "Authorization")
}
