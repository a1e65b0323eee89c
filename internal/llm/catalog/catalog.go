// Package catalog owns the model and provider selection state. The set of
// models and providers is closed; selection changes are atomic and validated,
// rejected changes keep the prior state.
package catalog

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/polittech/stratagem/internal/llm"
)

// Config seeds the catalog at startup. Empty fields fall back to defaults.
type Config struct {
	Model     string   `conf:"model" yaml:"model" json:"model"`
	Providers []string `conf:"providers" yaml:"providers" json:"providers"`
}

// DefaultModel is the selection used when configuration names none.
const DefaultModel = "gpt-4o"

// models maps public identifiers to backend handles.
var models = map[string]string{
	"gpt-4":           "gpt-4",
	"gpt-4o":          "gpt-4o",
	"gpt-4o-mini":     "gpt-4o-mini",
	"claude-3-opus":   "claude-3-opus",
	"claude-3-sonnet": "claude-3-sonnet",
	"claude-3-haiku":  "claude-3-haiku",
	"gemini-pro":      "gemini-1.5-pro",
	"llama-3":         "llama-3-70b",
	"mixtral-8x7b":    "mixtral-8x7b",
}

// defaultProviders is the preference order used when configuration names none.
var defaultProviders = []string{"ddg", "blackbox", "liaobots", "pollinations"}

// Handle resolves a public model identifier to its backend handle.
func Handle(name string) (string, error) {
	handle, ok := models[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", llm.ErrUnknownModel, name)
	}

	return handle, nil
}

// Catalog is the single source of truth for the active model and the provider
// preference order. Safe for concurrent use; reads return copies.
type Catalog struct {
	mu        sync.RWMutex
	model     string
	providers []string
}

func New(cfg Config) *Catalog {
	c := &Catalog{
		model:     DefaultModel,
		providers: slices.Clone(defaultProviders),
	}

	if cfg.Model != "" {
		c.SetModel(cfg.Model)
	}

	if len(cfg.Providers) > 0 {
		c.SetProviders(cfg.Providers)
	}

	return c
}

// SetModel switches the active model. Unknown names are rejected and the
// prior selection is kept.
func (c *Catalog) SetModel(name string) bool {
	if _, ok := models[name]; !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.model = name

	return true
}

func (c *Catalog) CurrentModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.model
}

// CurrentHandle resolves the active model to its backend handle.
func (c *Catalog) CurrentHandle() string {
	handle, _ := Handle(c.CurrentModel())
	return handle
}

// AvailableModels lists the public model identifiers in stable sorted order.
func (c *Catalog) AvailableModels() []string {
	names := lo.Keys(models)
	sort.Strings(names)

	return names
}

// SetProviders replaces the provider preference order. Unrecognized names are
// filtered out; if nothing recognizable remains the call is rejected and the
// prior set is kept.
func (c *Catalog) SetProviders(names []string) bool {
	filtered := lo.FilterMap(names, func(name string, _ int) (string, bool) {
		name = strings.ToLower(strings.TrimSpace(name))
		return name, slices.Contains(defaultProviders, name)
	})

	filtered = lo.Uniq(filtered)
	if len(filtered) == 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers = filtered

	return true
}

// CurrentProviders returns a copy of the preference order.
func (c *Catalog) CurrentProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.providers)
}

// AvailableProviders lists every registered provider identifier.
func (c *Catalog) AvailableProviders() []string {
	return slices.Clone(defaultProviders)
}
