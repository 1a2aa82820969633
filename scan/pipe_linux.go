package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

// Pipe runs each scan in a worker process which streams its results back
// over a pipe.
type Pipe struct {
	opts   Options
	log    *slog.Logger
	worker *Worker

	exec sync.Mutex

	mu    sync.Mutex
	iface string
	r, w  *os.File
	// consumed is set once a worker has been given the write end; the next
	// Execute allocates a fresh pipe.
	consumed bool
	child    *child
}

func NewPipe(scanner wifi.Scanner, opts Options) (*Pipe, error) {
	opts = opts.withDefaults(MethodPipe)
	if opts.Worker == nil {
		return nil, fmt.Errorf("pipe method needs a worker: %w", ErrSetup)
	}
	return &Pipe{opts: opts, log: opts.Logger, worker: opts.Worker}, nil
}

func (p *Pipe) Method() Method { return MethodPipe }

func (p *Pipe) Init(iface string) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.openPipe(); err != nil {
		return err
	}
	p.iface = iface
	return nil
}

func (p *Pipe) openPipe() error {
	p.closePipe()
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w: %w", ErrSetup, err)
	}
	p.r, p.w = r, w
	p.consumed = false
	return nil
}

func (p *Pipe) closePipe() {
	if p.r != nil {
		p.r.Close()
		p.r = nil
	}
	if p.w != nil {
		p.w.Close()
		p.w = nil
	}
}

func (p *Pipe) Execute(ctx context.Context, results []wifi.ScanRecord) (int, error) {
	if !p.exec.TryLock() {
		return 0, ErrBusy
	}
	defer p.exec.Unlock()

	c, r, err := p.launch(len(results))
	if err != nil {
		return 0, err
	}
	defer p.forget(c)

	if err := r.SetReadDeadline(deadline(ctx, p.opts.Timeout)); err != nil {
		c.terminate(p.opts.Grace)
		return 0, fmt.Errorf("set pipe deadline: %w: %w", ErrSetup, err)
	}
	stop := context.AfterFunc(ctx, func() {
		r.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := ReadFrame(r, results)
	switch {
	case err == nil:
		c.reap(p.opts.Grace)
		return n, nil
	case errors.Is(err, wifi.ErrScanFailed):
		c.reap(p.opts.Grace)
		return 0, err
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.terminate(p.opts.Grace)
		if ctx.Err() != nil {
			return 0, fmt.Errorf("pipe worker: %w", ctx.Err())
		}
		p.log.Warn("pipe worker timed out", "timeout", p.opts.Timeout)
		return 0, fmt.Errorf("pipe worker: %w", ErrTimeout)
	}
	p.log.Warn("malformed result from pipe worker", "err", err)
	c.terminate(p.opts.Grace)
	return 0, err
}

// launch spawns a worker on the current pipe and hands back the read end.
func (p *Pipe) launch(capacity int) (*child, *os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.iface == "" {
		return nil, nil, ErrNotInitialized
	}
	if p.consumed || p.r == nil {
		if err := p.openPipe(); err != nil {
			return nil, nil, err
		}
	}

	cmd, err := p.worker.command(modePipe, p.iface, capacity, p.w)
	if err != nil {
		return nil, nil, err
	}
	c, err := spawn(cmd, p.log)
	if err != nil {
		return nil, nil, err
	}
	// The worker holds the only write end, so its exit reads as EOF.
	p.w.Close()
	p.w = nil
	p.consumed = true
	p.child = c
	return c, p.r, nil
}

func (p *Pipe) forget(c *child) {
	p.mu.Lock()
	if p.child == c {
		p.child = nil
	}
	p.mu.Unlock()
}

func (p *Pipe) Cleanup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.child != nil {
		p.child.terminate(p.opts.Grace)
		p.child = nil
	}
	p.closePipe()
	p.iface = ""
	p.consumed = false
	return nil
}
