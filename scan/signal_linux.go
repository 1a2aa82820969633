package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/shazow/wifiscan/wifi"
)

// Signal runs each scan in a worker process that writes its results into
// shared memory and reports completion with SIGUSR1 (ready) or SIGUSR2
// (error). Only one Signal context per process may be initialized at a time.
type Signal struct {
	opts   Options
	log    *slog.Logger
	worker *Worker
	id     uuid.UUID

	exec sync.Mutex

	mu      sync.Mutex
	iface   string
	records *Region
	count   *Region
	sigs    chan os.Signal
	relay   chan struct{}
	child   *child

	ready  atomic.Bool
	failed atomic.Bool
}

func NewSignal(scanner wifi.Scanner, opts Options) (*Signal, error) {
	opts = opts.withDefaults(MethodSignal)
	if opts.Worker == nil {
		return nil, fmt.Errorf("signal method needs a worker: %w", ErrSetup)
	}
	id := uuid.New()
	return &Signal{
		opts:   opts,
		log:    opts.Logger.With("context", id),
		worker: opts.Worker,
		id:     id,
	}, nil
}

func (s *Signal) Method() Method { return MethodSignal }

func (s *Signal) Init(iface string) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iface != "" {
		s.iface = iface
		return nil
	}

	if err := receivers.claim(s.id); err != nil {
		return err
	}
	records, err := NewRegion("wifiscan-records", wifi.MaxScanResults*RecordSize)
	if err != nil {
		receivers.release(s.id)
		return err
	}
	count, err := NewRegion("wifiscan-count", 4)
	if err != nil {
		records.Close()
		receivers.release(s.id)
		return err
	}

	s.records, s.count = records, count
	s.sigs = make(chan os.Signal, 4)
	s.relay = make(chan struct{})
	signal.Notify(s.sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	go s.receive(s.sigs, s.relay)

	s.iface = iface
	return nil
}

// receive turns delivered signals into flags until sigs is closed.
func (s *Signal) receive(sigs <-chan os.Signal, done chan<- struct{}) {
	defer close(done)
	for sig := range sigs {
		switch sig {
		case syscall.SIGUSR1:
			s.ready.Store(true)
		case syscall.SIGUSR2:
			s.failed.Store(true)
		}
	}
}

func (s *Signal) Execute(ctx context.Context, results []wifi.ScanRecord) (int, error) {
	if !s.exec.TryLock() {
		return 0, ErrBusy
	}
	defer s.exec.Unlock()

	c, err := s.launch(len(results))
	if err != nil {
		return 0, err
	}
	defer s.forget(c)

	until := deadline(ctx, s.opts.Timeout)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// A worker that exits is given one more poll for its signal to land.
	exitSeen := false
	for {
		if s.ready.Load() {
			return s.collect(c, results)
		}
		if s.failed.Load() {
			c.reap(s.opts.Grace)
			return 0, fmt.Errorf("signal worker reported: %w", wifi.ErrScanFailed)
		}
		if exitSeen {
			s.log.Warn("signal worker exited without reporting", "code", c.ExitCode())
			return 0, fmt.Errorf("signal worker exited without reporting: %w", ErrTransport)
		}
		exitSeen = c.Exited()
		if !time.Now().Before(until) {
			c.terminate(s.opts.Grace)
			s.log.Warn("signal worker timed out", "timeout", s.opts.Timeout)
			return 0, fmt.Errorf("signal worker: %w", ErrTimeout)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			c.terminate(s.opts.Grace)
			return 0, fmt.Errorf("signal worker: %w", ctx.Err())
		}
	}
}

func (s *Signal) launch(capacity int) (*child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iface == "" {
		return nil, ErrNotInitialized
	}

	s.ready.Store(false)
	s.failed.Store(false)
	s.count.StoreUint32(0, 0)

	cmd, err := s.worker.command(modeSignal, s.iface, capacity, s.records.File(), s.count.File())
	if err != nil {
		return nil, err
	}
	c, err := spawn(cmd, s.log)
	if err != nil {
		return nil, err
	}
	s.child = c
	return c, nil
}

// collect copies the worker's records out of shared memory.
func (s *Signal) collect(c *child, results []wifi.ScanRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer c.reap(s.opts.Grace)

	if s.records == nil {
		return 0, ErrNotInitialized
	}
	count := int(s.count.LoadUint32(0))
	if count > s.records.Size()/RecordSize {
		return 0, fmt.Errorf("record count %d exceeds shared region: %w", count, ErrTransport)
	}
	n := min(count, len(results))
	if err := decodeSlots(s.records.Bytes(), results, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Signal) forget(c *child) {
	s.mu.Lock()
	if s.child == c {
		s.child = nil
	}
	s.mu.Unlock()
}

func (s *Signal) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.child != nil {
		s.child.terminate(s.opts.Grace)
		s.child = nil
	}
	if s.sigs != nil {
		signal.Stop(s.sigs)
		signal.Reset(syscall.SIGUSR1, syscall.SIGUSR2)
		close(s.sigs)
		<-s.relay
		s.sigs = nil
		s.relay = nil
	}

	var errs []error
	if s.records != nil {
		errs = append(errs, s.records.Close())
		s.records = nil
	}
	if s.count != nil {
		errs = append(errs, s.count.Close())
		s.count = nil
	}
	if s.iface != "" {
		receivers.release(s.id)
	}
	s.iface = ""
	return errors.Join(errs...)
}
