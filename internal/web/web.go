// Package web fetches article pages and searches news for extra strategy
// context. Search goes through the DuckDuckGo HTML endpoint, which works
// without an API key like the rest of the outbound integrations.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
	"github.com/polittech/stratagem/internal/pkg/xcache"
)

// ErrInvalidURL marks article input that is not an absolute http(s) URL.
// The message shown for it is a user mistake, not a system failure.
var ErrInvalidURL = errors.New("web: invalid article url")

// minBlockRunes filters navigation crumbs and captions out of the article
// body.
const minBlockRunes = 50

// strippedTags lists the page parts that never carry article text.
const strippedTags = "script, style, iframe, form, nav, footer, aside"

type Config struct {
	// SearchURL points at the HTML search endpoint, overridable for tests.
	SearchURL string `conf:"search_url" yaml:"search_url" json:"search_url"`

	// Region biases search results, kept on ru-ru for the Russian-language
	// strategy flows.
	Region string `conf:"region" yaml:"region" json:"region"`

	// Timeout bounds one article fetch or search.
	Timeout time.Duration `conf:"timeout" yaml:"timeout" json:"timeout"`

	// MaxResults bounds a search when the caller gives no limit.
	MaxResults int `conf:"max_results" yaml:"max_results" json:"max_results"`
}

func (c Config) withDefaults() Config {
	if c.SearchURL == "" {
		c.SearchURL = "https://html.duckduckgo.com/html/"
	}

	if c.Region == "" {
		c.Region = "ru-ru"
	}

	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	if c.MaxResults <= 0 {
		c.MaxResults = 10
	}

	return c
}

// Article is the readable core of a fetched page.
type Article struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SearchResult is one news hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Analyzer fetches articles and news search results.
type Analyzer struct {
	config Config
	client *httpclient.HttpClient
	cache  xcache.Cache[Article]
}

func New(config Config, client *httpclient.HttpClient, cache xcache.Cache[Article]) *Analyzer {
	return &Analyzer{
		config: config.withDefaults(),
		client: client,
		cache:  cache,
	}
}

// FetchArticle downloads rawURL and extracts its title and body text.
// Articles are cached by URL, so re-running a strategy with the same source
// does not refetch it.
func (a *Analyzer) FetchArticle(ctx context.Context, rawURL string) (*Article, error) {
	rawURL = strings.TrimSpace(rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	key := articleKey(rawURL)

	if cached, err := a.cache.Get(ctx, key); err == nil && cached.URL != "" {
		log.Debug(ctx, "article served from cache", log.String("url", rawURL))

		return &cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	resp, err := a.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     rawURL,
		Headers: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch article: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse article: %w", err)
	}

	article := extractArticle(doc)
	article.URL = rawURL

	log.Debug(ctx, "article fetched",
		log.String("url", rawURL),
		log.String("title", article.Title),
		log.Int("content_chars", utf8.RuneCountInString(article.Content)))

	if err := a.cache.Set(ctx, key, *article); err != nil {
		log.Warn(ctx, "failed to cache article", log.Cause(err))
	}

	return article, nil
}

func extractArticle(doc *goquery.Document) *Article {
	doc.Find(strippedTags).Remove()

	article := &Article{}

	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		article.Title = title
	} else {
		article.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	var blocks []string

	doc.Find("p, h2, h3, h4, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if utf8.RuneCountInString(text) > minBlockRunes {
			blocks = append(blocks, text)
		}
	})

	article.Content = strings.Join(blocks, "\n\n")

	return article
}

// SearchNews queries the news search endpoint and returns up to limit hits.
// Zero hits is a valid outcome, not an error.
func (a *Analyzer) SearchNews(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = a.config.MaxResults
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	searchURL := fmt.Sprintf("%s?q=%s&kl=%s",
		a.config.SearchURL, url.QueryEscape(query), url.QueryEscape(a.config.Region))

	resp, err := a.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     searchURL,
		Headers: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []SearchResult

	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a.result__a").First()

		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return true
		}

		href, _ := anchor.Attr("href")

		results = append(results, SearchResult{
			Title:   title,
			Link:    resolveLink(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
		})

		return len(results) < limit
	})

	log.Debug(ctx, "news search finished",
		log.String("query", query),
		log.Int("results", len(results)))

	return results, nil
}

// resolveLink unwraps the redirect links of the HTML search endpoint, which
// hide the target behind a uddg query parameter.
func resolveLink(href string) string {
	if href == "" {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"

		return parsed.String()
	}

	return href
}

func articleKey(rawURL string) string {
	return fmt.Sprintf("web:article:%x", xxhash.Sum64String(rawURL))
}
