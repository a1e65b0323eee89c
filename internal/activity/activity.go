// Package activity keeps a bounded in-memory trail of what the assistant has
// been doing: commands served, generations finished, failures hit. The ops
// endpoints read it; the bot and workers write to it.
package activity

import (
	"sync/atomic"
	"time"

	"github.com/polittech/stratagem/internal/pkg/ringbuffer"
	"github.com/polittech/stratagem/internal/pkg/xmap"
)

// DefaultCapacity bounds the retained event trail.
const DefaultCapacity = 256

// Event kinds recorded by the bot and the background workers.
const (
	KindCommand    = "command"
	KindCallback   = "callback"
	KindGeneration = "generation"
	KindAnalysis   = "analysis"
	KindScan       = "scan"
	KindError      = "error"
)

// Event is one recorded action.
type Event struct {
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Log is a concurrency-safe activity trail with per-kind counters. The zero
// pointer is usable: recording on a nil Log is a no-op, so callers do not
// need to care whether ops surfaces are wired.
type Log struct {
	events   *ringbuffer.RingBuffer[Event]
	counters *xmap.Map[string, *atomic.Uint64]
	now      func() time.Time
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Log{
		events:   ringbuffer.New[Event](capacity),
		counters: xmap.New[string, *atomic.Uint64](),
		now:      time.Now,
	}
}

// Record appends an event and bumps the counter for its kind.
func (l *Log) Record(kind, detail string) {
	if l == nil {
		return
	}

	counter, _ := l.counters.LoadOrStore(kind, &atomic.Uint64{})
	counter.Add(1)

	l.events.Push(Event{
		Kind:   kind,
		Detail: detail,
		At:     l.now().UTC(),
	})
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(limit int) []Event {
	if l == nil || limit <= 0 {
		return nil
	}

	items := l.events.Snapshot()

	events := make([]Event, 0, min(limit, len(items)))
	for i := len(items) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, items[i])
	}

	return events
}

// Counters returns a snapshot of per-kind totals since start.
func (l *Log) Counters() map[string]uint64 {
	if l == nil {
		return nil
	}

	snapshot := make(map[string]uint64)

	l.counters.Range(func(kind string, counter *atomic.Uint64) bool {
		snapshot[kind] = counter.Load()
		return true
	})

	return snapshot
}
