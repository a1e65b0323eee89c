// Package tgfeed reads public channel previews from t.me/s and distills
// recent posts into digests used as prompt context and analysis reports.
//
// The preview endpoint needs no API credentials, which keeps the whole
// channel-analysis path on the same anonymous footing as the generation
// backends.
package tgfeed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
	"github.com/polittech/stratagem/internal/pkg/xcache"
)

// DefaultLookbackDays bounds the post window when the caller gives none.
const DefaultLookbackDays = 7

type Config struct {
	// BaseURL points at the preview host, overridable for tests.
	BaseURL string `conf:"base_url" yaml:"base_url" json:"base_url"`

	// Timeout bounds one fetch or analysis, pagination included.
	Timeout time.Duration `conf:"timeout" yaml:"timeout" json:"timeout"`

	// MaxPages bounds how far back pagination walks.
	MaxPages int `conf:"max_pages" yaml:"max_pages" json:"max_pages"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://t.me"
	}

	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}

	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}

	return c
}

// Post is one channel message parsed out of the preview page.
type Post struct {
	ID       int64     `json:"id"`
	Text     string    `json:"text"`
	PostedAt time.Time `json:"posted_at"`
	Views    int64     `json:"views"`
}

// Feed is a channel's recent text posts, newest first.
type Feed struct {
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Posts   []Post `json:"posts"`
}

// Fetcher reads channel previews and builds digests.
type Fetcher struct {
	config Config
	client *httpclient.HttpClient
	cache  xcache.Cache[Digest]
	now    func() time.Time
}

func New(config Config, client *httpclient.HttpClient, cache xcache.Cache[Digest]) *Fetcher {
	return &Fetcher{
		config: config.withDefaults(),
		client: client,
		cache:  cache,
		now:    time.Now,
	}
}

// FetchRecent returns the channel's text posts from the last days days,
// newest first. Pagination follows the preview page's own load-more link
// backwards until the window is covered, the link disappears or the page
// budget runs out; posts without text are skipped, matching how the posts
// are later used as prompt context.
func (f *Fetcher) FetchRecent(ctx context.Context, channel string, days int) (*Feed, error) {
	channel = NormalizeChannel(channel)
	if channel == "" {
		return nil, fmt.Errorf("empty channel name")
	}

	if days <= 0 {
		days = DefaultLookbackDays
	}

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	cutoff := f.now().AddDate(0, 0, -days)
	feed := &Feed{Channel: channel}

	var collected []Post

	before := int64(0)

	for page := 0; page < f.config.MaxPages; page++ {
		pageURL := fmt.Sprintf("%s/s/%s", f.config.BaseURL, channel)
		if before > 0 {
			pageURL = fmt.Sprintf("%s?before=%d", pageURL, before)
		}

		doc, err := f.fetchPage(ctx, pageURL)
		if err != nil {
			if page == 0 {
				return nil, err
			}

			// Deeper pages are best-effort; keep what the window already has.
			log.Warn(ctx, "channel preview pagination failed",
				log.String("channel", channel),
				log.Int("page", page),
				log.Cause(err))

			break
		}

		if feed.Title == "" {
			feed.Title = channelTitle(doc)
		}

		posts := parsePosts(doc)
		if len(posts) == 0 {
			break
		}

		collected = append(collected, posts...)

		oldest := lo.MinBy(posts, func(a, b Post) bool { return a.PostedAt.Before(b.PostedAt) })
		if oldest.PostedAt.Before(cutoff) {
			break
		}

		before = nextBefore(doc)
		if before <= 0 {
			break
		}
	}

	feed.Posts = lo.Filter(collected, func(p Post, _ int) bool {
		return !p.PostedAt.Before(cutoff)
	})

	slices.SortFunc(feed.Posts, func(a, b Post) int { return cmp.Compare(b.ID, a.ID) })

	log.Debug(ctx, "channel preview fetched",
		log.String("channel", channel),
		log.Int("days", days),
		log.Int("posts", len(feed.Posts)))

	return feed, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := f.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     pageURL,
		Headers: http.Header{"Accept": []string{"text/html"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch channel preview: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse channel preview: %w", err)
	}

	return doc, nil
}

// nextBefore extracts the before cursor from the page's load-more link.
// Zero means the page offers no older history, so guessing a cursor would
// only produce requests the preview host rejects.
func nextBefore(doc *goquery.Document) int64 {
	href, ok := doc.Find("a.tme_messages_more").First().Attr("href")
	if !ok {
		return 0
	}

	u, err := url.Parse(href)
	if err != nil {
		return 0
	}

	before, _ := strconv.ParseInt(u.Query().Get("before"), 10, 64)

	return before
}

func parsePosts(doc *goquery.Document) []Post {
	var posts []Post

	doc.Find("div.tgme_widget_message").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Find(".tgme_widget_message_text").First().Text())
		if text == "" {
			return
		}

		post := Post{Text: text}

		if ref, ok := sel.Attr("data-post"); ok {
			if _, id, found := strings.Cut(ref, "/"); found {
				post.ID, _ = strconv.ParseInt(id, 10, 64)
			}
		}

		if stamp, ok := sel.Find(".tgme_widget_message_date time").First().Attr("datetime"); ok {
			if ts, err := time.Parse(time.RFC3339, stamp); err == nil {
				post.PostedAt = ts
			}
		}

		post.Views = ParseViews(sel.Find(".tgme_widget_message_views").First().Text())

		posts = append(posts, post)
	})

	return posts
}

func channelTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find(".tgme_channel_info_header_title").First().Text()); title != "" {
		return title
	}

	title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")

	return strings.TrimSpace(title)
}

// ParseViews decodes the abbreviated view counter of a preview page:
// "854" -> 854, "1.2K" -> 1200, "3M" -> 3000000. Unparseable input counts
// as zero views.
func ParseViews(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	multiplier := float64(1)

	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = 1e3
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1e6
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}

	return int64(math.Round(value * multiplier))
}

// NormalizeChannel reduces the accepted channel spellings (@name, t.me URL,
// preview URL) to the bare channel name.
func NormalizeChannel(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "t.me/")
	name = strings.TrimPrefix(name, "s/")
	name = strings.TrimPrefix(name, "@")

	if i := strings.IndexByte(name, '/'); i >= 0 {
		name = name[:i]
	}

	return name
}

// Filter returns the posts whose text contains keyword, case-insensitively.
// An empty keyword keeps everything.
func Filter(posts []Post, keyword string) []Post {
	if keyword == "" {
		return posts
	}

	needle := strings.ToLower(keyword)

	return lo.Filter(posts, func(p Post, _ int) bool {
		return strings.Contains(strings.ToLower(p.Text), needle)
	})
}

// Content joins post texts into one block usable as prompt context.
func Content(posts []Post) string {
	texts := lo.Map(posts, func(p Post, _ int) string { return p.Text })

	return strings.Join(texts, "\n\n")
}
