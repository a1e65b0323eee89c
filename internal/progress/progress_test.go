package progress

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
	err    error
}

func (r *frameRecorder) update(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, text)

	return r.err
}

func (r *frameRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.frames)
}

func sleepTask[T any](d time.Duration, result T) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(d):
			return result, nil
		}
	}
}

func TestRun_DeliversResultAndAnimates(t *testing.T) {
	rec := &frameRecorder{}
	ind := NewIndicator("⚙️ Обрабатываю ваш запрос...", rec.update).WithInterval(20 * time.Millisecond)

	got, err := Run(t.Context(), ind, sleepTask(110*time.Millisecond, "готово"))
	require.NoError(t, err)
	require.Equal(t, "готово", got)

	frames := rec.snapshot()
	require.NotEmpty(t, frames)

	// The dot suffix cycles 1, 2, 3, 0 regardless of how many ticks the task
	// outlived.
	for i, frame := range frames {
		require.Equal(t, "⚙️ Обрабатываю ваш запрос..."+strings.Repeat(".", (i+1)%frameStates), frame)
	}
}

func TestRun_TaskErrorStopsIndicator(t *testing.T) {
	rec := &frameRecorder{}
	ind := NewIndicator("работаю", rec.update).WithInterval(10 * time.Millisecond)

	got, err := Run(t.Context(), ind, func(ctx context.Context) (string, error) {
		return "частичный результат", errors.New("генерация упала")
	})
	require.ErrorContains(t, err, "генерация упала")
	require.Empty(t, got, "a failed task delivers no partial result")

	// Run joins the indicator before returning; no frame may land afterwards.
	before := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)
	require.Len(t, rec.snapshot(), before)
}

func TestRun_ExternalCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	rec := &frameRecorder{}
	ind := NewIndicator("работаю", rec.update).WithInterval(10 * time.Millisecond)

	started := make(chan struct{})

	go func() {
		<-started
		cancel()
	}()

	got, err := Run(ctx, ind, func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()

		return "частичный результат", ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, got)

	before := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)
	require.Len(t, rec.snapshot(), before)
}

func TestRun_IndicatorFailureDoesNotAbortTask(t *testing.T) {
	rec := &frameRecorder{err: errors.New("message is not modified")}
	ind := NewIndicator("работаю", rec.update).WithInterval(10 * time.Millisecond)

	got, err := Run(t.Context(), ind, sleepTask(60*time.Millisecond, 42))
	require.NoError(t, err)
	require.Equal(t, 42, got)
	require.NotEmpty(t, rec.snapshot(), "indicator kept animating through update failures")
}
