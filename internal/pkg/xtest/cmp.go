package xtest

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"

	"github.com/polittech/stratagem/internal/llm"
)

// jsonRawMessageComparer compares raw payloads semantically so fixtures do
// not have to match byte-for-byte formatting.
var jsonRawMessageComparer = cmp.Comparer(func(x, y json.RawMessage) bool {
	if len(x) == 0 && len(y) == 0 {
		return true
	}

	if len(x) == 0 || len(y) == 0 {
		return false
	}

	var xVal, yVal any
	if err := json.Unmarshal(x, &xVal); err != nil {
		return false
	}

	if err := json.Unmarshal(y, &yVal); err != nil {
		return false
	}

	return cmp.Equal(xVal, yVal)
})

// usageTransformer levels nil usage with the zero value, since backends are
// inconsistent about reporting token counts.
var usageTransformer = cmp.Transformer("Usage", func(u *llm.Usage) llm.Usage {
	if u == nil {
		return llm.Usage{}
	}

	return *u
})

func defaultOptions(opts []cmp.Option) []cmp.Option {
	return append([]cmp.Option{jsonRawMessageComparer, usageTransformer}, opts...)
}

// Equal reports deep equality with the package defaults applied.
func Equal(x, y any, opts ...cmp.Option) bool {
	return cmp.Equal(x, y, defaultOptions(opts)...)
}

// Diff returns a human-readable diff with the package defaults applied.
// Empty string means equal.
func Diff(x, y any, opts ...cmp.Option) string {
	return cmp.Diff(x, y, defaultOptions(opts)...)
}
