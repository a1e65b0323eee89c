package tgfeed

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polittech/stratagem/internal/pkg/httpclient"
	"github.com/polittech/stratagem/internal/pkg/xcache"
)

type previewPost struct {
	id    int64
	text  string
	views string
	at    time.Time
}

func previewPage(title string, posts ...previewPost) string {
	var b strings.Builder

	b.WriteString(`<html><head><meta property="og:title" content="og title"></head><body>`)
	fmt.Fprintf(&b, `<div class="tgme_channel_info_header_title">%s</div>`, title)

	for _, p := range posts {
		fmt.Fprintf(&b, `<div class="tgme_widget_message" data-post="chan/%d">`, p.id)

		if p.text != "" {
			fmt.Fprintf(&b, `<div class="tgme_widget_message_text">%s</div>`, p.text)
		}

		fmt.Fprintf(&b, `<span class="tgme_widget_message_views">%s</span>`, p.views)
		fmt.Fprintf(&b, `<a class="tgme_widget_message_date"><time datetime="%s"></time></a>`, p.at.Format(time.RFC3339))
		b.WriteString(`</div>`)
	}

	b.WriteString(`</body></html>`)

	return b.String()
}

// withMore appends the load-more link a real preview page carries while
// older history remains.
func withMore(page string, before int64) string {
	link := fmt.Sprintf(`<a class="tme_messages_more" href="/s/chan?before=%d">More</a>`, before)

	return strings.Replace(page, "</body>", link+"</body>", 1)
}

// previewServer serves preview pages keyed by the before query parameter;
// the first page uses the empty key.
func previewServer(t *testing.T, pages map[string]string, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		page, ok := pages[r.URL.Query().Get("before")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newFetcher(baseURL string, cache xcache.Cache[Digest], now time.Time) *Fetcher {
	f := New(Config{BaseURL: baseURL, MaxPages: 3}, httpclient.NewHttpClient(), cache)
	f.now = func() time.Time { return now }

	return f
}

func TestParseViews(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"854", 854},
		{" 47 ", 47},
		{"1.2K", 1200},
		{"1.5m", 1500000},
		{"3M", 3000000},
		{"", 0},
		{"много", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseViews(tt.in))
		})
	}
}

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"durov", "durov"},
		{"@durov", "durov"},
		{" @durov ", "durov"},
		{"https://t.me/durov", "durov"},
		{"http://t.me/s/durov", "durov"},
		{"t.me/durov/123", "durov"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizeChannel(tt.in))
		})
	}
}

func TestFetchRecent(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	page := previewPage("Политика сегодня",
		previewPost{id: 90, text: "Старый пост", views: "12", at: now.AddDate(0, 0, -10)},
		previewPost{id: 103, text: "", views: "33", at: now.Add(-3 * time.Hour)},
		previewPost{id: 104, text: "Вчерашние новости", views: "854", at: now.Add(-26 * time.Hour)},
		previewPost{id: 105, text: "Свежий пост про выборы", views: "1.2K", at: now.Add(-time.Hour)},
	)

	var hits atomic.Int64

	srv := previewServer(t, map[string]string{"": page}, &hits)

	fetcher := newFetcher(srv.URL, xcache.NewNoop[Digest](), now)

	feed, err := fetcher.FetchRecent(t.Context(), "@politics", 7)
	require.NoError(t, err)

	require.Equal(t, "politics", feed.Channel)
	require.Equal(t, "Политика сегодня", feed.Title)

	// The textless post is skipped, the ten-day-old one falls outside the
	// window, the rest come back newest first.
	require.Len(t, feed.Posts, 2)
	require.Equal(t, int64(105), feed.Posts[0].ID)
	require.Equal(t, "Свежий пост про выборы", feed.Posts[0].Text)
	require.Equal(t, int64(1200), feed.Posts[0].Views)
	require.True(t, feed.Posts[0].PostedAt.Equal(now.Add(-time.Hour)))
	require.Equal(t, int64(104), feed.Posts[1].ID)

	// The page already reaches past the cutoff, so one fetch is enough.
	require.Equal(t, int64(1), hits.Load())
}

func TestFetchRecentPaginates(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	first := withMore(previewPage("Политика сегодня",
		previewPost{id: 200, text: "Пост двести", views: "10", at: now.Add(-time.Hour)},
		previewPost{id: 199, text: "Пост сто девяносто девять", views: "20", at: now.Add(-2 * time.Hour)},
	), 199)
	second := previewPage("Политика сегодня",
		previewPost{id: 150, text: "Пост сто пятьдесят", views: "30", at: now.Add(-3 * time.Hour)},
		previewPost{id: 149, text: "Слишком старый пост", views: "40", at: now.AddDate(0, 0, -10)},
	)

	var hits atomic.Int64

	srv := previewServer(t, map[string]string{"": first, "199": second}, &hits)

	fetcher := newFetcher(srv.URL, xcache.NewNoop[Digest](), now)

	feed, err := fetcher.FetchRecent(t.Context(), "politics", 7)
	require.NoError(t, err)

	require.Equal(t, int64(2), hits.Load())
	require.Len(t, feed.Posts, 3)
	require.Equal(t, int64(200), feed.Posts[0].ID)
	require.Equal(t, int64(199), feed.Posts[1].ID)
	require.Equal(t, int64(150), feed.Posts[2].ID)
}

func TestFetchRecentStopsWithoutMoreLink(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	// All posts inside the window, but the page carries no load-more link:
	// the walk must end instead of probing cursors the host would reject.
	page := previewPage("Политика сегодня",
		previewPost{id: 300, text: "Свежий пост", views: "10", at: now.Add(-time.Hour)},
		previewPost{id: 299, text: "Ещё один", views: "20", at: now.Add(-2 * time.Hour)},
	)

	var hits atomic.Int64

	srv := previewServer(t, map[string]string{"": page}, &hits)

	fetcher := newFetcher(srv.URL, xcache.NewNoop[Digest](), now)

	feed, err := fetcher.FetchRecent(t.Context(), "politics", 7)
	require.NoError(t, err)
	require.Len(t, feed.Posts, 2)
	require.Equal(t, int64(1), hits.Load())
}

func TestFetchRecentFirstPageError(t *testing.T) {
	var hits atomic.Int64

	srv := previewServer(t, map[string]string{}, &hits)

	fetcher := newFetcher(srv.URL, xcache.NewNoop[Digest](), time.Now())

	_, err := fetcher.FetchRecent(t.Context(), "politics", 7)
	require.Error(t, err)
	require.ErrorContains(t, err, "fetch channel preview")
}

func TestFetchRecentEmptyChannel(t *testing.T) {
	fetcher := newFetcher("http://unused", xcache.NewNoop[Digest](), time.Now())

	_, err := fetcher.FetchRecent(t.Context(), "  ", 7)
	require.Error(t, err)
	require.ErrorContains(t, err, "empty channel name")
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	page := previewPage("Политика сегодня",
		previewPost{id: 11, text: "Выборы пройдут успешно. Кампания идет хорошо.", views: "1.2K", at: now.Add(-time.Hour)},
		previewPost{id: 10, text: "Выборы и кампания. Только проблема с бюджетом.", views: "854", at: now.Add(-2 * time.Hour)},
	)

	var hits atomic.Int64

	srv := previewServer(t, map[string]string{"": page}, &hits)

	cache := xcache.NewMemoryWithOptions[Digest](time.Minute, time.Minute)
	fetcher := newFetcher(srv.URL, cache, now)

	digest, err := fetcher.Analyze(t.Context(), "@politics", 7)
	require.NoError(t, err)

	require.Equal(t, "politics", digest.Channel)
	require.Equal(t, "Политика сегодня", digest.Title)
	require.Equal(t, 7, digest.PeriodDays)
	require.Equal(t, 2, digest.MessageCount)
	require.Equal(t, int64(2054), digest.TotalViews)
	require.InDelta(t, 1027, digest.AvgViews, 0.001)
	require.Len(t, digest.Posts, 2)

	// Only words repeated across the feed become topics; the stop-word
	// "только" never does.
	require.Equal(t, []string{"выборы", "кампания"}, digest.Topics)

	require.InDelta(t, 0.15, digest.Sentiment.Positive, 0.001)
	require.InDelta(t, 0.08, digest.Sentiment.Negative, 0.001)
	require.InDelta(t, 0.77, digest.Sentiment.Neutral, 0.001)
	require.InDelta(t, 1.0, digest.Sentiment.Positive+digest.Sentiment.Negative+digest.Sentiment.Neutral, 0.01)

	// Second analysis within the window is served from cache.
	again, err := fetcher.Analyze(t.Context(), "politics", 7)
	require.NoError(t, err)
	require.Equal(t, digest.Topics, again.Topics)
	require.Equal(t, int64(1), hits.Load())
}

func TestAnalyzeEmptyFeed(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

	var hits atomic.Int64

	srv := previewServer(t, map[string]string{"": previewPage("Тихий канал")}, &hits)

	fetcher := newFetcher(srv.URL, xcache.NewNoop[Digest](), now)

	digest, err := fetcher.Analyze(t.Context(), "quiet", 7)
	require.NoError(t, err)

	require.Zero(t, digest.MessageCount)
	require.Zero(t, digest.AvgViews)
	require.Empty(t, digest.Topics)
	require.Equal(t, Sentiment{Neutral: 1}, digest.Sentiment)
}

func TestFilterAndContent(t *testing.T) {
	posts := []Post{
		{Text: "Про выборы"},
		{Text: "Про экономику"},
	}

	require.Len(t, Filter(posts, ""), 2)

	filtered := Filter(posts, "ВЫБОРЫ")
	require.Len(t, filtered, 1)
	require.Equal(t, "Про выборы", filtered[0].Text)

	require.Equal(t, "Про выборы\n\nПро экономику", Content(posts))

	digest := Digest{Posts: posts}
	require.Equal(t, "Про экономику", digest.Content("эконом"))
}
