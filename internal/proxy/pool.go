// Package proxy maintains a pool of candidate egress proxies fetched from
// public list sources. A candidate is verified against a fixed test target
// before hand-out and discarded on failure, never retried in place. An empty
// or unverifiable pool reports unavailability rather than an error; callers
// proceed direct.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/metrics"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

// RefreshChannel carries pool refresh signals, cross-instance when the
// watcher runs in redis mode.
const RefreshChannel = "proxies:refresh"

var defaultSources = []string{
	"https://raw.githubusercontent.com/TheSpeedX/PROXY-List/master/http.txt",
	"https://raw.githubusercontent.com/ShiftyTR/Proxy-List/master/http.txt",
	"https://raw.githubusercontent.com/clarketm/proxy-list/master/proxy-list-raw.txt",
	"https://raw.githubusercontent.com/sunny9577/proxy-scraper/master/proxies.txt",
}

type Config struct {
	Enabled bool `conf:"enabled" yaml:"enabled" json:"enabled"`

	// Sources are plain-text host:port list URLs.
	Sources []string `conf:"sources" yaml:"sources" json:"sources"`

	// TestURL is the target a candidate must reach to count as working.
	TestURL string `conf:"test_url" yaml:"test_url" json:"test_url"`

	ProbeTimeout time.Duration `conf:"probe_timeout" yaml:"probe_timeout" json:"probe_timeout"`
	FetchTimeout time.Duration `conf:"fetch_timeout" yaml:"fetch_timeout" json:"fetch_timeout"`

	// MaxRounds bounds the fetch-and-probe rounds of one acquisition.
	MaxRounds int `conf:"max_rounds" yaml:"max_rounds" json:"max_rounds"`

	// RefreshCron is the background refresh cadence.
	RefreshCron string `conf:"refresh_cron" yaml:"refresh_cron" json:"refresh_cron"`
}

func (c Config) withDefaults() Config {
	if len(c.Sources) == 0 {
		c.Sources = defaultSources
	}

	if c.TestURL == "" {
		c.TestURL = "https://api.telegram.org"
	}

	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}

	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}

	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}

	if c.RefreshCron == "" {
		c.RefreshCron = "*/30 * * * *"
	}

	return c
}

// Pool holds the candidate list and the single current-proxy slot. The slot
// is replaced wholesale, never partially updated. A disabled pool hands out
// nothing and fetches nothing.
type Pool struct {
	config Config
	client *httpclient.HttpClient

	probe func(ctx context.Context, candidate *url.URL) bool

	mu         sync.Mutex
	candidates []*url.URL
	current    *url.URL
	lastFetch  time.Time
}

func NewPool(config Config, client *httpclient.HttpClient) *Pool {
	p := &Pool{
		config: config.withDefaults(),
		client: client,
	}
	p.probe = p.probeCandidate

	return p
}

// Next returns a verified proxy, or nil with no error when none is
// available. The current slot is re-verified on every hand-out; a failed
// slot is discarded before new candidates are probed.
func (p *Pool) Next(ctx context.Context) (*url.URL, error) {
	if !p.config.Enabled {
		return nil, nil
	}

	if current := p.currentProxy(); current != nil {
		if p.probe(ctx, current) {
			return current, nil
		}

		log.Info(ctx, "current proxy failed verification, discarding",
			log.String("proxy", current.Redacted()))
		p.dropCurrent(current)
	}

	for round := 0; round < p.config.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if p.size() == 0 {
			if p.Refresh(ctx) == 0 {
				continue
			}
		}

		for {
			candidate := p.pop()
			if candidate == nil {
				break
			}

			if p.probe(ctx, candidate) {
				p.setCurrent(candidate)
				log.Info(ctx, "verified working proxy",
					log.String("proxy", candidate.Redacted()))

				return candidate, nil
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return nil, nil
}

// Invalidate drops the current slot. The next acquisition draws and
// verifies a fresh candidate.
func (p *Pool) Invalidate(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return
	}

	log.Info(ctx, "invalidating current proxy", log.String("proxy", p.current.Redacted()))
	p.current = nil
}

// Refresh replaces the candidate list from the configured sources and
// returns the new pool size. Source failures are logged and skipped.
func (p *Pool) Refresh(ctx context.Context) int {
	if !p.config.Enabled {
		return 0
	}

	seen := make(map[string]struct{})
	fresh := make([]*url.URL, 0, 256)

	for _, source := range p.config.Sources {
		candidates, err := p.fetchSource(ctx, source)
		if err != nil {
			log.Warn(ctx, "failed to fetch proxy source",
				log.String("source", source), log.Cause(err))

			continue
		}

		for _, candidate := range candidates {
			if _, ok := seen[candidate.Host]; ok {
				continue
			}

			seen[candidate.Host] = struct{}{}

			fresh = append(fresh, candidate)
		}
	}

	rand.Shuffle(len(fresh), func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})

	p.mu.Lock()
	p.candidates = fresh
	p.lastFetch = time.Now()
	p.mu.Unlock()

	log.Info(ctx, "refreshed proxy pool", log.Int("candidates", len(fresh)))

	return len(fresh)
}

// Status is the ops snapshot of the pool.
type Status struct {
	Enabled    bool      `json:"enabled"`
	Candidates int       `json:"candidates"`
	Current    string    `json:"current,omitempty"`
	LastFetch  time.Time `json:"last_fetch"`
}

func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := Status{
		Enabled:    p.config.Enabled,
		Candidates: len(p.candidates),
		LastFetch:  p.lastFetch,
	}
	if p.current != nil {
		status.Current = p.current.Redacted()
	}

	return status
}

// Enabled reports whether the pool hands out proxies at all.
func (p *Pool) Enabled() bool {
	return p.config.Enabled
}

// RefreshCron is the effective background refresh cadence.
func (p *Pool) RefreshCron() string {
	return p.config.RefreshCron
}

// WatchRefresh consumes refresh signals until ctx ends or the stream
// closes. The caller subscribes before spawning this loop so signals
// published during startup are not lost.
func (p *Pool) WatchRefresh(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason, ok := <-events:
			if !ok {
				return
			}

			log.Debug(ctx, "proxy refresh signal", log.String("reason", reason))
			p.Refresh(ctx)
		}
	}
}

func (p *Pool) fetchSource(ctx context.Context, source string) ([]*url.URL, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.config.FetchTimeout)
	defer cancel()

	resp, err := p.client.Do(fetchCtx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    source,
	})
	if err != nil {
		return nil, err
	}

	return parseProxyList(resp.Body), nil
}

// parseProxyList reads host:port lines, skipping anything malformed.
func parseProxyList(body []byte) []*url.URL {
	var out []*url.URL

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, ":") {
			continue
		}

		host, port, err := net.SplitHostPort(line)
		if err != nil || host == "" || port == "" {
			continue
		}

		candidate, err := url.Parse("http://" + net.JoinHostPort(host, port))
		if err != nil {
			continue
		}

		out = append(out, candidate)
	}

	return out
}

// probeCandidate routes a lightweight request to the test target through
// the candidate. Certificate verification is skipped: list proxies commonly
// re-terminate TLS.
func (p *Pool) probeCandidate(ctx context.Context, candidate *url.URL) bool {
	client := httpclient.NewHttpClientWithClient(&http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(candidate),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: p.config.ProbeTimeout,
	})

	resp, err := client.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    p.config.TestURL,
	})

	ok := err == nil && resp.StatusCode == http.StatusOK

	metrics.RecordProxyProbe(ctx, ok)

	if !ok {
		log.Debug(ctx, "proxy candidate failed probe",
			log.String("proxy", candidate.Redacted()), log.Cause(err))
	}

	return ok
}

func (p *Pool) currentProxy() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.current
}

func (p *Pool) setCurrent(candidate *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = candidate
}

func (p *Pool) dropCurrent(candidate *url.URL) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == candidate {
		p.current = nil
	}
}

func (p *Pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.candidates)
}

func (p *Pool) pop() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.candidates) == 0 {
		return nil
	}

	candidate := p.candidates[len(p.candidates)-1]
	p.candidates = p.candidates[:len(p.candidates)-1]

	return candidate
}
