package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/xredis"
)

type RedisWatcherOptions struct {
	Channel string
	Buffer  int
}

// redisNotifier carries signals across process instances through a redis
// pub/sub channel. Locally it layers on the in-memory fan-out: everything
// received from redis is re-broadcast to in-process subscribers, and Notify
// publishes to redis so remote instances, this one included, see the same
// signal. The pub/sub connection lives only while someone is watching.
type redisNotifier[T any] struct {
	client  *redis.Client
	channel string

	local Notifier[T]

	mu       sync.Mutex
	watchers int
	sub      *redis.PubSub
	stopPump context.CancelFunc
}

func NewRedisWatcher[T any](client *redis.Client, opts RedisWatcherOptions) (Notifier[T], error) {
	if client == nil {
		return nil, errors.New("watcher.RedisWatcher: redis client is required")
	}

	if opts.Channel == "" {
		return nil, errors.New("watcher.RedisWatcher: channel is required")
	}

	return &redisNotifier[T]{
		client:  client,
		channel: opts.Channel,
		local:   NewMemoryWatcher[T](MemoryWatcherOptions{Buffer: opts.Buffer}),
	}, nil
}

func NewRedisWatcherFromConfig[T any](cfg xredis.Config, opts RedisWatcherOptions) (Notifier[T], error) {
	client, err := xredis.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisWatcher[T](client, opts)
}

func (n *redisNotifier[T]) Watch() (<-chan T, func()) {
	ch, release := n.local.Watch()

	n.retain()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			release()
			n.release()
		})
	}
}

// Notify goes through redis even for local subscribers; delivery happens
// when the message comes back on the subscription. One path, one ordering.
func (n *redisNotifier[T]) Notify(ctx context.Context, v T) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return n.client.Publish(ctx, n.channel, payload).Err()
}

// retain opens the subscription on the first watcher. The confirmation
// round-trip happens here so a Watch that has returned is guaranteed to
// receive messages published afterwards.
func (n *redisNotifier[T]) retain() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.watchers++
	if n.watchers > 1 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	n.stopPump = cancel

	n.sub = n.client.Subscribe(ctx, n.channel)
	_, _ = n.sub.Receive(ctx)

	go n.pump(ctx, n.sub)
}

func (n *redisNotifier[T]) release() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.watchers--
	if n.watchers > 0 {
		return
	}

	n.stopPump()
	n.stopPump = nil

	_ = n.sub.Close()
	n.sub = nil
}

// pump moves messages from the subscription into the local fan-out until
// the subscription is torn down. Undecodable payloads are dropped with a
// warning; the channel is shared and one bad publisher must not kill it.
func (n *redisNotifier[T]) pump(ctx context.Context, sub *redis.PubSub) {
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}

			log.Warn(ctx, "watcher redis receive failed",
				log.String("channel", n.channel), log.Cause(err))

			continue
		}

		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			log.Warn(ctx, "watcher redis payload decode failed",
				log.String("channel", n.channel),
				log.String("payload", msg.Payload),
				log.Cause(err))

			continue
		}

		_ = n.local.Notify(ctx, v)
	}
}
