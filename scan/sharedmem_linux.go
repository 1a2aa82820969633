package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

// Layout of the forked-shm region: a header followed by record slots.
const (
	shmCountOffset    = 0
	shmCompleteOffset = 4
	shmSuccessOffset  = 8
	shmHeaderSize     = 16
)

// ForkedSHM runs each scan in a worker process that writes into one shared
// region and raises a completion flag which the parent polls for. If the
// region or the worker cannot be set up, scans run directly instead.
type ForkedSHM struct {
	scanner wifi.Scanner
	opts    Options
	log     *slog.Logger
	worker  *Worker

	exec sync.Mutex

	mu       sync.Mutex
	iface    string
	region   *Region
	fallback bool
	child    *child
}

func NewForkedSHM(scanner wifi.Scanner, opts Options) (*ForkedSHM, error) {
	opts = opts.withDefaults(MethodForkedSHM)
	return &ForkedSHM{
		scanner: scanner,
		opts:    opts,
		log:     opts.Logger,
		worker:  opts.Worker,
	}, nil
}

func (f *ForkedSHM) Method() Method { return MethodForkedSHM }

func (f *ForkedSHM) Init(iface string) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iface = iface
	if f.region != nil || f.fallback {
		return nil
	}

	if f.worker == nil {
		f.log.Warn("no worker configured, falling back to direct scan")
		f.fallback = true
		return nil
	}
	region, err := NewRegion("wifiscan-results", shmHeaderSize+wifi.MaxScanResults*RecordSize)
	if err != nil {
		f.log.Warn("shared memory unavailable, falling back to direct scan", "err", err)
		f.fallback = true
		return nil
	}
	f.region = region
	return nil
}

// Fallback reports whether scans are running directly.
func (f *ForkedSHM) Fallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fallback
}

func (f *ForkedSHM) Execute(ctx context.Context, results []wifi.ScanRecord) (int, error) {
	if !f.exec.TryLock() {
		return 0, ErrBusy
	}
	defer f.exec.Unlock()

	f.mu.Lock()
	iface, fallback := f.iface, f.fallback
	f.mu.Unlock()
	if iface == "" {
		return 0, ErrNotInitialized
	}
	if fallback {
		return scanInto(ctx, f.scanner, iface, results)
	}

	c, region, err := f.launch(len(results))
	if errors.Is(err, ErrNotInitialized) {
		return 0, err
	}
	if err != nil {
		f.log.Warn("failed to start worker, scanning directly", "err", err)
		return scanInto(ctx, f.scanner, iface, results)
	}
	defer f.forget(c)

	until := deadline(ctx, f.opts.Timeout)
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()
	for {
		if region.LoadUint32(shmCompleteOffset) != 0 {
			return f.collect(c, region, results)
		}
		if c.Exited() {
			// The flag is raised before the worker exits.
			if region.LoadUint32(shmCompleteOffset) != 0 {
				return f.collect(c, region, results)
			}
			f.log.Warn("worker exited without completing", "code", c.ExitCode())
			return 0, fmt.Errorf("forked-shm worker exited without completing: %w", ErrTransport)
		}
		if !time.Now().Before(until) {
			f.log.Warn("forked-shm worker timed out", "timeout", f.opts.Timeout)
			c.terminate(f.opts.Grace)
			return 0, fmt.Errorf("forked-shm worker: %w", ErrTimeout)
		}

		select {
		case <-ticker.C:
		case <-c.Done():
		case <-ctx.Done():
			c.terminate(f.opts.Grace)
			return 0, fmt.Errorf("forked-shm worker: %w", ctx.Err())
		}
	}
}

// launch spawns a worker over the region. The returned region stays mapped
// until Execute returns, since Cleanup waits for it.
func (f *ForkedSHM) launch(capacity int) (*child, *Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	region := f.region
	if region == nil {
		return nil, nil, ErrNotInitialized
	}
	region.Clear(shmHeaderSize)

	cmd, err := f.worker.command(modeSHM, f.iface, capacity, region.File())
	if err != nil {
		return nil, nil, err
	}
	c, err := spawn(cmd, f.log)
	if err != nil {
		return nil, nil, err
	}
	f.child = c
	return c, region, nil
}

func (f *ForkedSHM) collect(c *child, region *Region, results []wifi.ScanRecord) (int, error) {
	defer c.reap(f.opts.Grace)

	if region.LoadUint32(shmSuccessOffset) == 0 {
		return 0, fmt.Errorf("forked-shm worker reported: %w", wifi.ErrScanFailed)
	}
	count := int(region.LoadUint32(shmCountOffset))
	slots := region.Bytes()[shmHeaderSize:]
	if count > len(slots)/RecordSize {
		return 0, fmt.Errorf("record count %d exceeds shared region: %w", count, ErrTransport)
	}
	n := min(count, len(results))
	if err := decodeSlots(slots, results, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (f *ForkedSHM) forget(c *child) {
	f.mu.Lock()
	if f.child == c {
		f.child = nil
	}
	f.mu.Unlock()
}

// Cleanup stops any running worker, waits for an Execute in flight to
// return and then releases the region.
func (f *ForkedSHM) Cleanup() error {
	f.mu.Lock()
	c := f.child
	f.child = nil
	f.mu.Unlock()
	if c != nil {
		c.terminate(f.opts.Grace)
	}

	f.exec.Lock()
	defer f.exec.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.region != nil {
		err = f.region.Close()
		f.region = nil
	}
	f.iface = ""
	f.fallback = false
	return err
}
