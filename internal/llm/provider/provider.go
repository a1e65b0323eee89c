// Package provider adapts the unified generation request to the wire formats
// of the free chat backends. Adapters keep no state between calls; auth
// pre-flights are performed per request on the caller's client so they ride
// the same egress path, including any proxy.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

// ErrUnsupportedModel marks a model the provider cannot serve. The
// orchestrator absorbs it like any other provider failure and moves on.
var ErrUnsupportedModel = errors.New("provider: model not supported")

type Provider interface {
	Name() string

	// BuildRequest renders req into the backend HTTP form. handle is the
	// backend model identifier resolved by the catalog.
	BuildRequest(ctx context.Context, client *httpclient.HttpClient, req *llm.Request, handle string) (*httpclient.Request, error)

	// ParseResponse decodes a buffered response body.
	ParseResponse(req *llm.Request, body []byte) (*llm.Response, error)

	// ParseChunk decodes one stream frame into a delta response.
	// ok is false for frames that carry nothing usable.
	ParseChunk(req *llm.Request, data []byte) (*llm.Response, bool)
}

// Finisher is implemented by providers whose stream text needs a cleanup
// pass after accumulation.
type Finisher interface {
	FinishStream(text string) string
}

// Registry resolves provider identifiers to adapters.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}

	return r
}

// DefaultRegistry registers every built-in backend.
func DefaultRegistry() *Registry {
	return NewRegistry(NewDDG(), NewBlackbox(), NewLiaobots(), NewPollinations())
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, name)
	}

	return p, nil
}

// Names lists the registered provider identifiers in stable sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
