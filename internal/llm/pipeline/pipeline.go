// Package pipeline drives one generation request through the configured
// provider set: bounded outer attempts, strict provider order within an
// attempt, exponential backoff between attempts and optional egress
// indirection with invalidation on whole-set failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/polittech/stratagem/internal/contexts"
	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/llm/provider"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/metrics"
)

// backoffFactor grows the delay after every failed attempt.
const backoffFactor = 1.5

type Config struct {
	// MaxRetries bounds the outer attempts.
	MaxRetries int `conf:"max_retries" yaml:"max_retries" json:"max_retries"`

	// RetryDelay is the first backoff; later ones grow by backoffFactor.
	RetryDelay time.Duration `conf:"retry_delay" yaml:"retry_delay" json:"retry_delay"`

	// Timeout bounds a single backend call.
	Timeout time.Duration `conf:"timeout" yaml:"timeout" json:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}

	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}

	return c
}

// Generator executes one request against one provider. Satisfied by
// *gateway.Gateway.
type Generator interface {
	Generate(ctx context.Context, prov provider.Provider, req *llm.Request, handle string, proxyURL *url.URL) (*llm.Response, error)
}

// ProxySource hands out egress proxies. Next may return nil with no error
// when no proxy is available; the pipeline then proceeds direct. Invalidate
// drops the current proxy so the next attempt draws a fresh one.
type ProxySource interface {
	Next(ctx context.Context) (*url.URL, error)
	Invalidate(ctx context.Context)
}

type callOptions struct {
	timeout time.Duration
}

type Option func(*callOptions)

// WithTimeout overrides the per-call deadline, e.g. the extended
// channel-analysis class.
func WithTimeout(d time.Duration) Option {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// Pipeline is safe for concurrent use; per-call state lives on the stack.
type Pipeline struct {
	config   Config
	gateway  Generator
	registry *provider.Registry
	catalog  *catalog.Catalog
	proxies  ProxySource

	sleep func(ctx context.Context, d time.Duration) error
}

func New(config Config, gateway Generator, registry *provider.Registry, cat *catalog.Catalog, proxies ProxySource) *Pipeline {
	return &Pipeline{
		config:   config.withDefaults(),
		gateway:  gateway,
		registry: registry,
		catalog:  cat,
		proxies:  proxies,
		sleep:    ctxSleep,
	}
}

// Generate runs req to completion or exhaustion. The provider set and the
// active model are snapshotted once at entry; admin changes apply to later
// calls only.
func (p *Pipeline) Generate(ctx context.Context, req *llm.Request, opts ...Option) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", llm.ErrInvalidRequest)
	}

	options := callOptions{timeout: p.config.Timeout}
	for _, opt := range opts {
		opt(&options)
	}

	// An empty model means "whatever is currently selected", so resolution
	// happens before validation.
	wire, handle, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := wire.Validate(); err != nil {
		return nil, err
	}

	providers := p.catalog.CurrentProviders()
	if len(providers) == 0 {
		return nil, errors.New("no providers configured")
	}

	log.Debug(ctx, "starting generation",
		log.String("model", wire.Model),
		log.Any("providers", providers))

	var (
		errs  *multierror.Error
		delay = p.config.RetryDelay
	)

	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}

			delay = time.Duration(float64(delay) * backoffFactor)
		}

		resp, kind, err := p.attempt(ctx, wire, handle, providers, options)
		metrics.RecordGenerationAttempt(ctx, kind.String())

		switch kind {
		case OutcomeSuccess:
			return resp, nil

		case OutcomeFatal:
			return nil, err

		case OutcomeRetryable:
			errs = multierror.Append(errs, err)

			log.Warn(ctx, "generation attempt failed",
				log.Int("attempt", attempt+1),
				log.Int("max_attempts", p.config.MaxRetries),
				log.Cause(err))
		}
	}

	return nil, fmt.Errorf("generation failed after %d attempts: %w", p.config.MaxRetries, errs.ErrorOrNil())
}

// prepare resolves the model handle and stamps the request identity.
func (p *Pipeline) prepare(ctx context.Context, req *llm.Request) (*llm.Request, string, error) {
	model := req.Model
	if model == "" {
		model = p.catalog.CurrentModel()
	}

	handle, err := catalog.Handle(model)
	if err != nil {
		return nil, "", err
	}

	wire := req.Clone()
	wire.Model = model

	if wire.Metadata == nil {
		wire.Metadata = make(map[string]string)
	}

	if wire.Metadata["request_id"] == "" {
		if traceID, ok := contexts.GetTraceID(ctx); ok {
			wire.Metadata["request_id"] = traceID
		} else {
			wire.Metadata["request_id"] = uuid.NewString()
		}
	}

	return wire, handle, nil
}

// attempt walks the provider set once. The first success wins; failures are
// absorbed and classified. A whole-set failure with at least one retryable
// cause consumes a retry slot and invalidates the current proxy.
func (p *Pipeline) attempt(ctx context.Context, req *llm.Request, handle string, providers []string, options callOptions) (*llm.Response, OutcomeKind, error) {
	proxyURL := p.nextProxy(ctx)

	var (
		errs      *multierror.Error
		retryable bool
	)

	for _, name := range providers {
		if err := ctx.Err(); err != nil {
			return nil, OutcomeFatal, err
		}

		prov, err := p.registry.Get(name)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, options.timeout)
		resp, err := p.gateway.Generate(callCtx, prov, req, handle, proxyURL)

		cancel()

		if err == nil {
			return resp, OutcomeSuccess, nil
		}

		outcome := AttemptOutcome{Provider: name, Kind: Classify(err), Err: err}
		if outcome.Kind == OutcomeRetryable {
			retryable = true
		}

		metrics.RecordProviderFailure(ctx, name)
		log.Warn(ctx, "provider failed",
			log.String("provider", name),
			log.String("outcome", outcome.Kind.String()),
			log.Cause(err))

		errs = multierror.Append(errs, &llm.ProviderError{Provider: name, Model: req.Model, Err: err})
	}

	// Every failure was final for its provider; another pass over the same
	// set cannot end differently.
	if !retryable {
		return nil, OutcomeFatal, errs.ErrorOrNil()
	}

	if proxyURL != nil && p.proxies != nil {
		p.proxies.Invalidate(ctx)
	}

	return nil, OutcomeRetryable, errs.ErrorOrNil()
}

func (p *Pipeline) nextProxy(ctx context.Context) *url.URL {
	if p.proxies == nil {
		return nil
	}

	proxyURL, err := p.proxies.Next(ctx)
	if err != nil {
		log.Warn(ctx, "proxy acquisition failed, going direct", log.Cause(err))
		return nil
	}

	if proxyURL == nil {
		log.Warn(ctx, "no proxy available, going direct")
		return nil
	}

	log.Info(ctx, "using proxy", log.String("proxy", proxyURL.Redacted()))

	return proxyURL
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
