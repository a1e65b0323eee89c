package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/provider"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{
			name: "nil is success",
			err:  nil,
			want: OutcomeSuccess,
		},
		{
			name: "invalid request is fatal",
			err:  fmt.Errorf("wrapped: %w", llm.ErrInvalidRequest),
			want: OutcomeFatal,
		},
		{
			name: "unknown model is fatal",
			err:  llm.ErrUnknownModel,
			want: OutcomeFatal,
		},
		{
			name: "unknown provider is fatal",
			err:  llm.ErrUnknownProvider,
			want: OutcomeFatal,
		},
		{
			name: "unsupported model is final for the provider",
			err:  fmt.Errorf("%w: %q", provider.ErrUnsupportedModel, "mixtral-8x7b"),
			want: OutcomeFatal,
		},
		{
			name: "empty response is retryable",
			err:  llm.ErrEmptyResponse,
			want: OutcomeRetryable,
		},
		{
			name: "deadline is retryable",
			err:  fmt.Errorf("call: %w", context.DeadlineExceeded),
			want: OutcomeRetryable,
		},
		{
			name: "rate limit is retryable",
			err:  &httpclient.Error{StatusCode: 429, Status: "429 Too Many Requests"},
			want: OutcomeRetryable,
		},
		{
			name: "server error is retryable",
			err:  &httpclient.Error{StatusCode: 503, Status: "503 Service Unavailable"},
			want: OutcomeRetryable,
		},
		{
			name: "rejection is fatal",
			err:  &httpclient.Error{StatusCode: 403, Status: "403 Forbidden"},
			want: OutcomeFatal,
		},
		{
			name: "not found is fatal",
			err:  &httpclient.Error{StatusCode: 404, Status: "404 Not Found"},
			want: OutcomeFatal,
		},
		{
			name: "dns failure is retryable",
			err:  &net.DNSError{Err: "no such host", Name: "text.pollinations.ai"},
			want: OutcomeRetryable,
		},
		{
			name: "unrecognized error defaults to retryable",
			err:  errors.New("connection reset by peer"),
			want: OutcomeRetryable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestOutcomeKind_String(t *testing.T) {
	require.Equal(t, "success", OutcomeSuccess.String())
	require.Equal(t, "retryable", OutcomeRetryable.String())
	require.Equal(t, "fatal", OutcomeFatal.String())
}
