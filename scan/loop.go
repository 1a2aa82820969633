package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shazow/wifiscan/wifi"
)

// MinDelay is the shortest pause allowed between continuous scans.
const MinDelay = 500 * time.Millisecond

// threadedPoll is how often a continuous threaded run checks for
// cancellation.
const threadedPoll = 100 * time.Millisecond

// Iteration is the outcome of one scan in a continuous run.
type Iteration struct {
	Number    int
	ID        uuid.UUID
	Interface string
	Method    Method
	Time      time.Time
	Duration  time.Duration
	Delay     time.Duration
	Count     int
	Records   []wifi.ScanRecord
	Err       error
}

// Loop repeatedly scans an interface with one Strategy until its context is
// cancelled. Cancellation is only observed between scans; a scan in flight
// always runs to completion.
type Loop struct {
	Strategy  Strategy
	Interface string
	Delay     time.Duration
	// Capacity of each iteration's result buffer. Defaults to
	// wifi.MaxScanResults.
	Capacity  int
	OnResult  func(Iteration)
	OnWarning func(string)
	Logger    *slog.Logger
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loop) capacity() int {
	if l.Capacity > 0 {
		return l.Capacity
	}
	return wifi.MaxScanResults
}

// effectiveDelay applies the MinDelay floor, warning once when it kicks in.
func (l *Loop) effectiveDelay() time.Duration {
	if l.Delay >= MinDelay {
		return l.Delay
	}
	msg := fmt.Sprintf("delay %v is below the minimum, using %v", l.Delay, MinDelay)
	l.logger().Warn(msg)
	if l.OnWarning != nil {
		l.OnWarning(msg)
	}
	return MinDelay
}

func (l *Loop) report(it Iteration) {
	log := l.logger()
	if it.Err != nil {
		log.Warn("scan failed", "iteration", it.Number, "id", it.ID, "err", it.Err)
	} else {
		log.Debug("scan complete", "iteration", it.Number, "id", it.ID, "count", it.Count, "duration", it.Duration)
	}
	if l.OnResult != nil {
		l.OnResult(it)
	}
}

// Run drives the loop. It returns nil once ctx is cancelled, or an error if
// the loop could not be started.
func (l *Loop) Run(ctx context.Context) error {
	if l.Strategy == nil {
		return fmt.Errorf("loop has no strategy: %w", ErrSetup)
	}
	if err := wifi.ValidateInterface(l.Interface); err != nil {
		return err
	}
	delay := l.effectiveDelay()

	if t, ok := l.Strategy.(*Threaded); ok {
		return l.runThreaded(ctx, t, delay)
	}

	for n := 1; ctx.Err() == nil; n++ {
		l.report(l.iterate(context.WithoutCancel(ctx), n, delay))
		if ctx.Err() != nil {
			break
		}
		time.Sleep(delay)
	}
	return nil
}

// iterate runs one full Init -> Execute -> Cleanup cycle.
func (l *Loop) iterate(ctx context.Context, n int, delay time.Duration) Iteration {
	it := Iteration{
		Number:    n,
		ID:        uuid.New(),
		Interface: l.Interface,
		Method:    l.Strategy.Method(),
		Time:      time.Now(),
		Delay:     delay,
	}

	if err := l.Strategy.Init(l.Interface); err != nil {
		it.Err = err
		l.Strategy.Cleanup()
		it.Duration = time.Since(it.Time)
		return it
	}

	buf := make([]wifi.ScanRecord, l.capacity())
	it.Count, it.Err = l.Strategy.Execute(ctx, buf)
	it.Records = buf[:it.Count]

	if err := l.Strategy.Cleanup(); err != nil {
		l.logger().Warn("cleanup failed", "iteration", n, "err", err)
	}
	it.Duration = time.Since(it.Time)
	return it
}

// runThreaded lets the worker goroutine pace itself and only watches for
// cancellation here.
func (l *Loop) runThreaded(ctx context.Context, t *Threaded, delay time.Duration) error {
	if err := t.Init(l.Interface); err != nil {
		return err
	}
	defer t.Cleanup()

	n := 0
	started := time.Now()
	cb := func(iface string, results []wifi.ScanRecord, count int, _ any) {
		n++
		now := time.Now()
		l.report(Iteration{
			Number:    n,
			ID:        uuid.New(),
			Interface: iface,
			Method:    MethodThreaded,
			Time:      started,
			Duration:  now.Sub(started),
			Delay:     delay,
			Count:     count,
			Records:   results,
			Err:       t.Status(),
		})
		started = time.Now().Add(delay)
	}
	if err := t.start(l.Interface, l.capacity(), true, delay, cb, nil); err != nil {
		return err
	}

	ticker := time.NewTicker(threadedPoll)
	defer ticker.Stop()
	for range ticker.C {
		if ctx.Err() != nil {
			break
		}
	}
	t.Stop()
	return nil
}
