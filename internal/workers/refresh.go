package workers

import (
	"context"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/watcher"
	"github.com/polittech/stratagem/internal/proxy"
)

type ProxyRefresherParams struct {
	fx.In

	Executor executors.ScheduledExecutor
	Pool     *proxy.Pool
	Signals  watcher.Notifier[string]
}

// ProxyRefresher publishes a refresh signal on a cron cadence so the pool
// does not pay the full fetch-and-probe cost inside a user dialogue. It also
// owns the goroutine that feeds signals into the pool, manual publishers
// reuse the same channel.
type ProxyRefresher struct {
	executor executors.ScheduledExecutor
	pool     *proxy.Pool
	signals  watcher.Notifier[string]

	cancelCron  func()
	cancelWatch context.CancelFunc
	stopWatch   func()
}

func NewProxyRefresher(params ProxyRefresherParams) *ProxyRefresher {
	return &ProxyRefresher{
		executor: params.Executor,
		pool:     params.Pool,
		signals:  params.Signals,
	}
}

func (r *ProxyRefresher) Start(ctx context.Context) error {
	if !r.pool.Enabled() {
		log.Info(ctx, "proxy refresh disabled")
		return nil
	}

	// The watch loop outlives the startup context. Subscribing happens here,
	// before the goroutine is spawned, so a signal published right after
	// Start returns is already buffered rather than dropped.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	events, stopWatch := r.signals.Watch()
	r.cancelWatch = cancelWatch
	r.stopWatch = stopWatch

	go r.pool.WatchRefresh(watchCtx, events)

	cancelCron, err := r.executor.ScheduleFuncAtCronRate(
		r.refresh,
		executors.CRONRule{Expr: r.pool.RefreshCron()},
	)
	if err != nil {
		cancelWatch()
		stopWatch()

		return err
	}

	r.cancelCron = cancelCron

	log.Info(ctx, "proxy refresh started", log.String("cron", r.pool.RefreshCron()))

	return nil
}

func (r *ProxyRefresher) Stop(ctx context.Context) error {
	if r.cancelCron != nil {
		r.cancelCron()
	}

	if r.cancelWatch != nil {
		r.cancelWatch()
	}

	if r.stopWatch != nil {
		r.stopWatch()
	}

	return nil
}

func (r *ProxyRefresher) refresh(ctx context.Context) {
	if err := r.signals.Notify(ctx, "scheduled"); err != nil {
		log.Warn(ctx, "proxy refresh signal failed", log.Cause(err))
	}
}
