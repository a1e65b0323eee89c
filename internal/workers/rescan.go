package workers

import (
	"context"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/tgfeed"
)

type RescanConfig struct {
	Enabled bool   `conf:"enabled" yaml:"enabled" json:"enabled"`
	CRON    string `conf:"cron" yaml:"cron" json:"cron"`

	// Days is the lookback window of one scan.
	Days int `conf:"days" yaml:"days" json:"days"`
}

func (c RescanConfig) withDefaults() RescanConfig {
	if c.CRON == "" {
		c.CRON = "0 * * * *"
	}

	if c.Days <= 0 {
		c.Days = 1
	}

	return c
}

type RescannerParams struct {
	fx.In

	Config   RescanConfig
	Executor executors.ScheduledExecutor
	Store    *store.Store
	Feed     *tgfeed.Fetcher
	Activity *activity.Log
}

// Rescanner keeps the message archive of tracked channels warm so digests
// and keyword lookups do not start from an empty table.
type Rescanner struct {
	config   RescanConfig
	executor executors.ScheduledExecutor
	store    *store.Store
	feed     *tgfeed.Fetcher
	activity *activity.Log

	cancel func()
}

func NewRescanner(params RescannerParams) *Rescanner {
	return &Rescanner{
		config:   params.Config.withDefaults(),
		executor: params.Executor,
		store:    params.Store,
		feed:     params.Feed,
		activity: params.Activity,
	}
}

func (r *Rescanner) Start(ctx context.Context) error {
	if !r.config.Enabled {
		log.Info(ctx, "channel rescan disabled")
		return nil
	}

	cancel, err := r.executor.ScheduleFuncAtCronRate(
		r.rescanAll,
		executors.CRONRule{Expr: r.config.CRON},
	)
	if err != nil {
		return err
	}

	r.cancel = cancel

	log.Info(ctx, "channel rescan started",
		log.String("cron", r.config.CRON),
		log.Int("days", r.config.Days),
	)

	return nil
}

func (r *Rescanner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	return nil
}

// rescanAll walks every tracked channel once. One failing channel does not
// stop the sweep.
func (r *Rescanner) rescanAll(ctx context.Context) {
	channels, err := r.store.AllChannels(ctx)
	if err != nil {
		log.Error(ctx, "rescan: list channels", log.Cause(err))
		return
	}

	for _, channel := range channels {
		if err := r.rescan(ctx, channel); err != nil {
			log.Warn(ctx, "rescan channel failed",
				log.String("channel", channel.Username),
				log.Cause(err),
			)
		}
	}
}

func (r *Rescanner) rescan(ctx context.Context, channel store.Channel) error {
	feed, err := r.feed.FetchRecent(ctx, channel.Username, r.config.Days)
	if err != nil {
		return err
	}

	if len(feed.Posts) == 0 {
		return r.store.TouchScanned(ctx, channel.ID)
	}

	messages := make([]store.Message, 0, len(feed.Posts))
	for _, post := range feed.Posts {
		messages = append(messages, store.Message{
			MessageID: post.ID,
			Text:      post.Text,
			PostedAt:  post.PostedAt,
		})
	}

	// SaveMessages stamps last_scanned_at in the same transaction.
	if err := r.store.SaveMessages(ctx, channel.ID, messages); err != nil {
		return err
	}

	r.activity.Record(activity.KindScan, channel.Username)

	log.Debug(ctx, "channel rescanned",
		log.String("channel", channel.Username),
		log.Int("messages", len(messages)),
	)

	return nil
}
