package tgfeed

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/xcache"
)

const (
	// maxDigestPosts caps how many posts a digest carries along.
	maxDigestPosts = 100

	// maxTopics caps the topic list of a digest.
	maxTopics = 10

	// digestTTL bounds how stale a served digest can get before the preview
	// endpoint is consulted again.
	digestTTL = 10 * time.Minute
)

// topicPattern matches candidate topic words: four letters or more, so
// prepositions and particles fall out before the stop-word check.
var topicPattern = regexp.MustCompile(`[\p{L}\p{N}_]{4,}`)

// sentimentPattern matches every word for the tone tally.
var sentimentPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

var topicStopwords = wordSet(
	"этот", "который", "такой", "только", "если", "также", "может", "быть",
	"когда", "очень", "всего", "будет", "более", "можно", "нужно",
)

var positiveWords = wordSet(
	"хорошо", "отлично", "прекрасно", "замечательно", "успешно", "позитивно",
	"радость", "любовь", "счастье",
)

var negativeWords = wordSet(
	"плохо", "ужасно", "проблема", "неудача", "негативно", "грустно",
	"печально", "ненависть", "трудности",
)

// Sentiment is the naive tone split of a channel's recent posts. The three
// shares sum to one, each rounded to two decimals.
type Sentiment struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Digest is the aggregate picture of a channel's recent activity, cacheable
// and directly usable as prompt context.
type Digest struct {
	Channel      string    `json:"channel"`
	Title        string    `json:"title"`
	PeriodDays   int       `json:"period_days"`
	MessageCount int       `json:"message_count"`
	TotalViews   int64     `json:"total_views"`
	AvgViews     float64   `json:"avg_views"`
	Topics       []string  `json:"topics"`
	Sentiment    Sentiment `json:"sentiment"`
	Posts        []Post    `json:"posts"`
}

// Content joins the digest's post texts, keyword-filtered when keyword is
// non-empty.
func (d *Digest) Content(keyword string) string {
	return Content(Filter(d.Posts, keyword))
}

// Analyze assembles the digest of a channel's last days days. Digests are
// cached by channel and window, so repeated strategy flows do not hammer the
// preview endpoint.
func (f *Fetcher) Analyze(ctx context.Context, channel string, days int) (*Digest, error) {
	channel = NormalizeChannel(channel)
	if days <= 0 {
		days = DefaultLookbackDays
	}

	key := digestKey(channel, days)

	if cached, err := f.cache.Get(ctx, key); err == nil && cached.Channel != "" {
		log.Debug(ctx, "channel digest served from cache",
			log.String("channel", channel),
			log.Int("days", days))

		return &cached, nil
	}

	feed, err := f.FetchRecent(ctx, channel, days)
	if err != nil {
		return nil, fmt.Errorf("analyze channel %s: %w", channel, err)
	}

	digest := buildDigest(feed, days)

	if err := f.cache.Set(ctx, key, *digest, xcache.WithExpiration(digestTTL)); err != nil {
		log.Warn(ctx, "failed to cache channel digest", log.Cause(err))
	}

	return digest, nil
}

func buildDigest(feed *Feed, days int) *Digest {
	digest := &Digest{
		Channel:      feed.Channel,
		Title:        feed.Title,
		PeriodDays:   days,
		MessageCount: len(feed.Posts),
	}

	for _, post := range feed.Posts {
		digest.TotalViews += post.Views
	}

	if digest.MessageCount > 0 {
		digest.AvgViews = float64(digest.TotalViews) / float64(digest.MessageCount)
	}

	text := Content(feed.Posts)
	digest.Topics = topTopics(text)
	digest.Sentiment = scoreSentiment(text)

	digest.Posts = feed.Posts
	if len(digest.Posts) > maxDigestPosts {
		digest.Posts = digest.Posts[:maxDigestPosts]
	}

	return digest
}

// topTopics returns the most repeated non-stop-words, most frequent first,
// ties broken alphabetically. Words seen once carry no signal and are
// dropped.
func topTopics(text string) []string {
	counts := map[string]int{}

	for _, word := range topicPattern.FindAllString(strings.ToLower(text), -1) {
		if _, skip := topicStopwords[word]; !skip {
			counts[word]++
		}
	}

	repeated := lo.OmitBy(counts, func(_ string, count int) bool { return count < 2 })

	words := lo.Keys(repeated)
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(repeated[b], repeated[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	if len(words) > maxTopics {
		words = words[:maxTopics]
	}

	return words
}

func scoreSentiment(text string) Sentiment {
	var positive, negative, total int

	for _, word := range sentimentPattern.FindAllString(strings.ToLower(text), -1) {
		total++

		if _, ok := positiveWords[word]; ok {
			positive++
		}

		if _, ok := negativeWords[word]; ok {
			negative++
		}
	}

	if total == 0 {
		return Sentiment{Neutral: 1}
	}

	positiveShare := float64(positive) / float64(total)
	negativeShare := float64(negative) / float64(total)

	return Sentiment{
		Positive: round2(positiveShare),
		Negative: round2(negativeShare),
		Neutral:  round2(1 - positiveShare - negativeShare),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func digestKey(channel string, days int) string {
	return fmt.Sprintf("tgfeed:digest:%x", xxhash.Sum64String(fmt.Sprintf("%s:%d", channel, days)))
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}

	return set
}
