// Package metrics owns the OTel meter provider and the instrument set.
// Instruments are registered once at startup via SetupMetrics; the record
// helpers are no-ops until then, so packages can call them unconditionally.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdk "go.opentelemetry.io/otel/sdk/metric"
)

type Config struct {
	// Mode selects the exporter: "disabled", "stdout" or "otlp".
	Mode string `conf:"mode" yaml:"mode" json:"mode"`

	// Endpoint is the OTLP HTTP collector endpoint, host:port.
	Endpoint string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Interval is the export cadence. Zero means the SDK default.
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}

// NewProvider builds the meter provider for the configured mode. A disabled
// or empty mode returns nil; callers treat a nil provider as metrics off.
func NewProvider(config Config) (*sdk.MeterProvider, error) {
	var (
		exporter sdk.Exporter
		err      error
	)

	switch config.Mode {
	case "", "disabled":
		return nil, nil

	case "stdout":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}

	case "otlp":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if config.Endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(config.Endpoint))
		}

		exporter, err = otlpmetrichttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}

	default:
		return nil, fmt.Errorf("unknown metrics mode %q", config.Mode)
	}

	readerOpts := []sdk.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdk.WithInterval(config.Interval))
	}

	return sdk.NewMeterProvider(
		sdk.WithReader(sdk.NewPeriodicReader(exporter, readerOpts...)),
	), nil
}

var (
	generationAttempts metric.Int64Counter
	providerFailures   metric.Int64Counter
	proxyProbes        metric.Int64Counter
)

// SetupMetrics installs provider as the global meter provider and registers
// the instrument set under the service name.
func SetupMetrics(provider *sdk.MeterProvider, name string) error {
	otel.SetMeterProvider(provider)

	meter := provider.Meter(name)

	var err error

	generationAttempts, err = meter.Int64Counter("generation_attempts_total",
		metric.WithDescription("Generation attempts by outcome"))
	if err != nil {
		return fmt.Errorf("register generation attempts counter: %w", err)
	}

	providerFailures, err = meter.Int64Counter("provider_failures_total",
		metric.WithDescription("Absorbed provider failures by provider"))
	if err != nil {
		return fmt.Errorf("register provider failures counter: %w", err)
	}

	proxyProbes, err = meter.Int64Counter("proxy_probes_total",
		metric.WithDescription("Proxy candidate probes by result"))
	if err != nil {
		return fmt.Errorf("register proxy probes counter: %w", err)
	}

	return nil
}

// RecordGenerationAttempt counts one orchestrator attempt with its outcome
// tag.
func RecordGenerationAttempt(ctx context.Context, outcome string) {
	if generationAttempts == nil {
		return
	}

	generationAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordProviderFailure counts one absorbed provider failure.
func RecordProviderFailure(ctx context.Context, provider string) {
	if providerFailures == nil {
		return
	}

	providerFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordProxyProbe counts one proxy candidate probe.
func RecordProxyProbe(ctx context.Context, ok bool) {
	if proxyProbes == nil {
		return
	}

	proxyProbes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}
