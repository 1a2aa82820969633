package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shazow/wifiscan/wifi"
)

type loopRecorder struct {
	mu         sync.Mutex
	iterations []Iteration
	warnings   []string
}

func (r *loopRecorder) onResult(it Iteration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.iterations = append(r.iterations, it)
}

func (r *loopRecorder) onWarning(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, msg)
}

func (r *loopRecorder) snapshot() ([]Iteration, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Iteration(nil), r.iterations...), append([]string(nil), r.warnings...)
}

func TestLoopDelayFloor(t *testing.T) {
	rec := &loopRecorder{}
	l := &Loop{
		Strategy:  NewDirect(newMock(2)),
		Interface: "wlan0",
		Delay:     10 * time.Millisecond,
		OnResult:  rec.onResult,
		OnWarning: rec.onWarning,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	iterations, warnings := rec.snapshot()
	assert.Len(t, warnings, 1)
	require.GreaterOrEqual(t, len(iterations), 2)
	assert.LessOrEqual(t, len(iterations), 3)
	for i, it := range iterations {
		assert.Equal(t, i+1, it.Number)
		assert.Equal(t, MinDelay, it.Delay)
		assert.Equal(t, MethodDirect, it.Method)
		assert.Equal(t, 2, it.Count)
		assert.NoError(t, it.Err)
		if i > 0 {
			assert.GreaterOrEqual(t, it.Time.Sub(iterations[i-1].Time), MinDelay)
			assert.NotEqual(t, iterations[i-1].ID, it.ID)
		}
	}
}

func TestLoopNoWarningAboveFloor(t *testing.T) {
	rec := &loopRecorder{}
	l := &Loop{
		Strategy:  NewDirect(newMock(1)),
		Interface: "wlan0",
		Delay:     600 * time.Millisecond,
		OnResult:  rec.onResult,
		OnWarning: rec.onWarning,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	iterations, warnings := rec.snapshot()
	assert.Empty(t, warnings)
	assert.Len(t, iterations, 1)
}

func TestLoopFinishesScanInFlight(t *testing.T) {
	s := newMock(3)
	s.ActionSleep = 300 * time.Millisecond
	rec := &loopRecorder{}
	l := &Loop{
		Strategy:  NewDirect(s),
		Interface: "wlan0",
		Delay:     MinDelay,
		OnResult:  rec.onResult,
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	require.NoError(t, l.Run(ctx))

	iterations, _ := rec.snapshot()
	require.Len(t, iterations, 1)
	assert.NoError(t, iterations[0].Err)
	assert.Equal(t, 3, iterations[0].Count)
	assert.Len(t, iterations[0].Records, 3)
}

func TestLoopThreadedFinishesScanInFlight(t *testing.T) {
	s := newMock(3)
	s.ActionSleep = 300 * time.Millisecond
	rec := &loopRecorder{}
	th := NewThreaded(s, Options{})
	l := &Loop{
		Strategy:  th,
		Interface: "wlan0",
		Delay:     MinDelay,
		OnResult:  rec.onResult,
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	require.NoError(t, l.Run(ctx))
	assert.False(t, th.Active())

	iterations, _ := rec.snapshot()
	require.Len(t, iterations, 1)
	assert.NoError(t, iterations[0].Err)
	assert.Equal(t, 3, iterations[0].Count)
	assert.Len(t, iterations[0].Records, 3)
	assert.Equal(t, 1, s.Calls())
}

func TestLoopReportsInitFailure(t *testing.T) {
	rec := &loopRecorder{}
	l := &Loop{
		Strategy:  &failingInit{Direct: NewDirect(newMock(1))},
		Interface: "wlan0",
		Delay:     MinDelay,
		OnResult:  rec.onResult,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	iterations, _ := rec.snapshot()
	require.Len(t, iterations, 1)
	assert.ErrorIs(t, iterations[0].Err, ErrSetup)
}

type failingInit struct {
	*Direct
}

func (f *failingInit) Init(string) error { return ErrSetup }

func TestLoopThreaded(t *testing.T) {
	rec := &loopRecorder{}
	th := NewThreaded(newMock(2), Options{})
	l := &Loop{
		Strategy:  th,
		Interface: "wlan0",
		Delay:     MinDelay,
		OnResult:  rec.onResult,
		OnWarning: rec.onWarning,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 800*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))
	assert.False(t, th.Active())

	iterations, warnings := rec.snapshot()
	assert.Empty(t, warnings)
	require.GreaterOrEqual(t, len(iterations), 1)
	assert.LessOrEqual(t, len(iterations), 2)
	for _, it := range iterations {
		assert.Equal(t, MethodThreaded, it.Method)
		assert.Equal(t, 2, it.Count)
	}
}

func TestLoopInvalid(t *testing.T) {
	assert.ErrorIs(t, (&Loop{Interface: "wlan0"}).Run(context.Background()), ErrSetup)
	l := &Loop{Strategy: NewDirect(newMock(1)), Interface: ""}
	assert.ErrorIs(t, l.Run(context.Background()), wifi.ErrInvalidInterface)
}
