package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

// Callback receives the outcome of each scan run by a Threaded worker.
// count is len(results). A Callback must not call Stop.
type Callback func(iface string, results []wifi.ScanRecord, count int, userData any)

// Threaded runs the Scan Provider in a worker goroutine.
//
// The worker moves through idle -> running -> completed -> idle, or
// running -> stopping -> idle when Stop is called. A continuous worker
// keeps re-running the scan with a pause in between until stopped.
type Threaded struct {
	scanner wifi.Scanner
	opts    Options
	log     *slog.Logger

	exec sync.Mutex

	mu       sync.Mutex
	cond     *sync.Cond
	iface    string
	active   bool
	complete bool
	results  []wifi.ScanRecord
	count    int
	status   error

	// gen identifies the current worker. A worker whose generation is stale
	// has been abandoned and must not publish anything.
	gen    uint64
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

func NewThreaded(scanner wifi.Scanner, opts Options) *Threaded {
	opts = opts.withDefaults(MethodThreaded)
	t := &Threaded{
		scanner: scanner,
		opts:    opts,
		log:     opts.Logger,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *Threaded) Method() Method { return MethodThreaded }

func (t *Threaded) Init(iface string) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return ErrAlreadyActive
	}
	t.iface = iface
	return nil
}

// Start runs a single scan on a worker goroutine and calls cb with its
// outcome.
func (t *Threaded) Start(iface string, cb Callback, userData any) error {
	return t.start(iface, t.capacity(), false, 0, cb, userData)
}

// StartContinuous runs scans on a worker goroutine, pausing for interval
// between them, until Stop is called.
func (t *Threaded) StartContinuous(iface string, interval time.Duration, cb Callback, userData any) error {
	return t.start(iface, t.capacity(), true, interval, cb, userData)
}

func (t *Threaded) capacity() int {
	if t.opts.Capacity > 0 {
		return t.opts.Capacity
	}
	return wifi.MaxScanResults
}

func (t *Threaded) start(iface string, capacity int, continuous bool, interval time.Duration, cb Callback, userData any) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	if continuous && interval <= 0 {
		return fmt.Errorf("continuous scan interval %v must be positive: %w", interval, ErrSetup)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return ErrAlreadyActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.gen++
	t.iface = iface
	t.active = true
	t.complete = false
	t.results = make([]wifi.ScanRecord, capacity)
	t.count = 0
	t.status = nil
	t.cancel = cancel
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	t.log.Debug("starting scan worker", "interface", iface, "continuous", continuous, "interval", interval)
	go t.run(ctx, t.gen, iface, capacity, continuous, interval, cb, userData, t.stop, t.done)
	return nil
}

func (t *Threaded) run(ctx context.Context, gen uint64, iface string, capacity int, continuous bool, interval time.Duration, cb Callback, userData any, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		buf := make([]wifi.ScanRecord, capacity)
		n, err := scanInto(ctx, t.scanner, iface, buf)
		buf = buf[:n]

		t.mu.Lock()
		current := t.gen == gen
		if current {
			t.results = buf
			t.count = n
			t.status = err
		}
		notify := current && t.active
		t.mu.Unlock()

		if notify && cb != nil {
			cb(iface, buf, n, userData)
		}

		stopped := false
		select {
		case <-stop:
			stopped = true
		default:
		}

		t.mu.Lock()
		if t.gen == gen {
			t.complete = true
			if !continuous || stopped {
				t.active = false
			}
		}
		keepGoing := continuous && t.gen == gen && t.active
		t.cond.Broadcast()
		t.mu.Unlock()

		if !keepGoing {
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// Stop asks the worker to exit and waits for it. A scan already in flight
// runs to completion and is delivered to the callback first; no callback
// runs after Stop returns.
func (t *Threaded) Stop() {
	t.mu.Lock()
	done := t.done
	if done == nil {
		t.mu.Unlock()
		return
	}
	gen := t.gen
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.cond.Broadcast()
	t.mu.Unlock()

	<-done

	t.mu.Lock()
	if t.gen == gen {
		t.active = false
		t.done = nil
		t.cancel()
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

// abandon detaches the current worker without waiting for it. The worker's
// context is cancelled and anything it produces afterwards is discarded; the
// goroutine exits once the Scanner honours the cancellation.
func (t *Threaded) abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.active = false
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.done = nil
	t.cond.Broadcast()
}

// Wait blocks until the current scan has completed or the worker was
// stopped.
func (t *Threaded) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.active && !t.complete {
		t.cond.Wait()
	}
}

// Active reports whether a worker is running.
func (t *Threaded) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Status returns the outcome of the latest completed scan. Zero results is
// not an error.
func (t *Threaded) Status() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Results returns a copy of the latest completed scan's records.
func (t *Threaded) Results() []wifi.ScanRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wifi.ScanRecord, t.count)
	copy(out, t.results)
	return out
}

func (t *Threaded) Execute(ctx context.Context, results []wifi.ScanRecord) (int, error) {
	if !t.exec.TryLock() {
		return 0, ErrBusy
	}
	defer t.exec.Unlock()

	t.mu.Lock()
	iface := t.iface
	t.mu.Unlock()
	if iface == "" {
		return 0, ErrNotInitialized
	}

	if err := t.start(iface, len(results), false, 0, nil, nil); err != nil {
		return 0, err
	}
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	timer := time.NewTimer(time.Until(deadline(ctx, t.opts.Timeout)))
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		t.log.Warn("scan worker timed out", "interface", iface, "timeout", t.opts.Timeout)
		t.abandon()
		return 0, fmt.Errorf("threaded scan on %s: %w", iface, ErrTimeout)
	case <-ctx.Done():
		t.abandon()
		return 0, fmt.Errorf("threaded scan on %s: %w", iface, ctx.Err())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return copy(results, t.results[:t.count]), t.status
}

func (t *Threaded) Cleanup() error {
	t.Stop()
	t.mu.Lock()
	t.iface = ""
	t.results = nil
	t.count = 0
	t.status = nil
	t.done = nil
	t.mu.Unlock()
	return nil
}
