package app

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/conf"
	"github.com/polittech/stratagem/internal/metrics"
)

// The graph must resolve with exactly the extras main supplies.
func TestGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(
		fx.NopLogger,
		Options(),
		fx.Provide(conf.Load),
		fx.Provide(metrics.NewProvider),
	)
	require.NoError(t, err)
}
