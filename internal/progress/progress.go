// Package progress runs a long chat task next to an animated activity
// indicator. The two run under one cancellation scope and the indicator is
// always stopped and joined before the task's outcome is observed, so a late
// frame can never overwrite the rendered result.
package progress

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polittech/stratagem/internal/log"
)

// DefaultInterval is the delay between indicator frames.
const DefaultInterval = time.Second

// frameStates cycles the dot suffix through 1, 2, 3 and 0 dots.
const frameStates = 4

// UpdateFunc pushes a new indicator frame to the user, usually by editing a
// previously sent chat message.
type UpdateFunc func(ctx context.Context, text string) error

// Indicator animates a label with a rotating dot suffix. Frame delivery is
// best-effort: a failed update is logged and the animation keeps going.
type Indicator struct {
	label    string
	interval time.Duration
	update   UpdateFunc
}

func NewIndicator(label string, update UpdateFunc) *Indicator {
	return &Indicator{
		label:    label,
		interval: DefaultInterval,
		update:   update,
	}
}

// WithInterval overrides the frame interval.
func (i *Indicator) WithInterval(interval time.Duration) *Indicator {
	i.interval = interval

	return i
}

func (i *Indicator) spin(ctx context.Context) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	frame := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame = (frame + 1) % frameStates

			if err := i.update(ctx, i.label+strings.Repeat(".", frame)); err != nil {
				log.Warn(ctx, "progress indicator update failed", log.Cause(err))
			}
		}
	}
}

// Run executes task while indicator animates. When the task returns, the
// indicator is cancelled and joined before Run does; outer cancellation
// interrupts both and surfaces as the returned error. On failure the zero
// result is returned.
func Run[T any](ctx context.Context, indicator *Indicator, task func(ctx context.Context) (T, error)) (T, error) {
	g, gctx := errgroup.WithContext(ctx)

	spinCtx, stopSpin := context.WithCancel(gctx)
	defer stopSpin()

	var result T

	g.Go(func() error {
		defer stopSpin()

		out, err := task(gctx)
		if err != nil {
			return err
		}

		result = out

		return nil
	})

	g.Go(func() error {
		indicator.spin(spinCtx)

		return nil
	})

	if err := g.Wait(); err != nil {
		var zero T

		return zero, err
	}

	return result, nil
}
