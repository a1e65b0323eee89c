package app

import (
	"context"
	"log/slog"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/conf"
	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/bot"
	"github.com/polittech/stratagem/internal/extract"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/llm/gateway"
	"github.com/polittech/stratagem/internal/llm/pipeline"
	"github.com/polittech/stratagem/internal/llm/provider"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/metrics"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
	"github.com/polittech/stratagem/internal/pkg/watcher"
	"github.com/polittech/stratagem/internal/pkg/xcache"
	"github.com/polittech/stratagem/internal/proxy"
	"github.com/polittech/stratagem/internal/server"
	"github.com/polittech/stratagem/internal/server/api"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/strategist"
	"github.com/polittech/stratagem/internal/tgfeed"
	"github.com/polittech/stratagem/internal/web"
	"github.com/polittech/stratagem/internal/workers"
)

// refreshChannel carries proxy refresh signals between the scheduled
// refresher and the pool. Redis mode shares it across instances.
const refreshChannel = "stratagem:proxy:refresh"

// Run assembles the application and blocks until shutdown. Callers add
// fx options on top, the config constructor included.
func Run(opts ...fx.Option) {
	app := fx.New(append([]fx.Option{fx.NopLogger, Options()}, opts...)...)
	app.Run()
}

// Options is the full dependency graph minus the config constructor, which
// the caller supplies.
func Options() fx.Option {
	return fx.Options(
		fx.Provide(configs()...),
		fx.Provide(constructors()...),
		fx.Invoke(func(cfg log.Config) {
			log.SetGlobalConfig(cfg)
			slog.SetDefault(log.GetGlobalLogger().AsSlog())
		}),
		fx.Invoke(func(lc fx.Lifecycle, executor executors.ScheduledExecutor) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return executor.Shutdown(ctx)
				},
			})
		}),
		fx.Invoke(func(lc fx.Lifecycle, st *store.Store) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					return st.Close()
				},
			})
		}),
		fx.Invoke(func(lc fx.Lifecycle, rescanner *workers.Rescanner, refresher *workers.ProxyRefresher) {
			lc.Append(fx.Hook{OnStart: rescanner.Start, OnStop: rescanner.Stop})
			lc.Append(fx.Hook{OnStart: refresher.Start, OnStop: refresher.Stop})
		}),
		fx.Invoke(server.SetupRoutes),
	)
}

func configs() []any {
	return []any{
		func(cfg conf.Config) log.Config { return cfg.Log },
		func(cfg conf.Config) bot.Config { return cfg.Bot },
		func(cfg conf.Config) catalog.Config { return cfg.LLM.Catalog },
		func(cfg conf.Config) pipeline.Config { return cfg.LLM.Pipeline },
		func(cfg conf.Config) proxy.Config { return cfg.Proxy },
		func(cfg conf.Config) tgfeed.Config { return cfg.Feed },
		func(cfg conf.Config) web.Config { return cfg.Web },
		func(cfg conf.Config) store.Config { return cfg.Store },
		func(cfg conf.Config) workers.RescanConfig { return cfg.Workers.Rescan },
		func(cfg conf.Config) metrics.Config { return cfg.Metrics },
		func(cfg conf.Config) server.Config { return cfg.Server },
	}
}

func constructors() []any {
	return []any{
		log.New,
		httpclient.NewHttpClient,
		workers.NewExecutors,
		newStore,
		newDigestCache,
		newArticleCache,
		newRefreshSignals,
		newExtractor,
		newActivity,
		newPipeline,
		newStrategist,
		proxy.NewPool,
		gateway.New,
		provider.DefaultRegistry,
		catalog.New,
		tgfeed.New,
		web.New,
		bot.New,
		workers.NewRescanner,
		workers.NewProxyRefresher,
		api.NewSystemHandlers,
		server.New,
	}
}

func newStore(cfg store.Config) (*store.Store, error) {
	return store.Open(context.Background(), cfg)
}

func newDigestCache(cfg conf.Config) xcache.Cache[tgfeed.Digest] {
	return xcache.NewFromConfig[tgfeed.Digest](cfg.Cache)
}

func newArticleCache(cfg conf.Config) xcache.Cache[web.Article] {
	return xcache.NewFromConfig[web.Article](cfg.Cache)
}

func newRefreshSignals(cfg conf.Config) (watcher.Notifier[string], error) {
	return watcher.NewWatcherFromConfig[string](cfg.Watcher, watcher.WatcherFromConfigOptions{
		RedisChannel: refreshChannel,
		Buffer:       8,
	})
}

func newExtractor() *extract.Extractor {
	return extract.New(extract.DefaultLexicon())
}

func newActivity() *activity.Log {
	return activity.NewLog(activity.DefaultCapacity)
}

func newPipeline(cfg pipeline.Config, gw *gateway.Gateway, registry *provider.Registry, cat *catalog.Catalog, pool *proxy.Pool) *pipeline.Pipeline {
	return pipeline.New(cfg, gw, registry, cat, pool)
}

func newStrategist(pipe *pipeline.Pipeline, extractor *extract.Extractor) *strategist.Strategist {
	return strategist.New(pipe, extractor)
}
