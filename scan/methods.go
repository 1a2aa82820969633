package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

// Method identifies an execution strategy.
type Method int

const (
	MethodDirect Method = iota
	MethodThreaded
	MethodPipe
	MethodSignal
	MethodForkedSHM
)

var methodNames = []string{
	MethodDirect:    "direct",
	MethodThreaded:  "threaded",
	MethodPipe:      "pipe",
	MethodSignal:    "signal",
	MethodForkedSHM: "forked-shm",
}

var methodDescriptions = []string{
	MethodDirect:    "Scan in the calling goroutine",
	MethodThreaded:  "Scan in a worker goroutine with a completion callback",
	MethodPipe:      "Scan in a worker process, results streamed over a pipe",
	MethodSignal:    "Scan in a worker process, results in shared memory, completion by signal",
	MethodForkedSHM: "Scan in a worker process, results in shared memory, completion by polling",
}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Description is a one-line summary of how the method runs a scan.
func (m Method) Description() string {
	if m < 0 || int(m) >= len(methodDescriptions) {
		return ""
	}
	return methodDescriptions[m]
}

// ParseMethod returns the Method with the given name.
func ParseMethod(name string) (Method, error) {
	for i, n := range methodNames {
		if strings.EqualFold(n, name) {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("unknown scan method %q: %w", name, wifi.ErrNotFound)
}

// Methods lists every available Method.
func Methods() []Method {
	out := make([]Method, len(methodNames))
	for i := range out {
		out[i] = Method(i)
	}
	return out
}

// SelectMethod picks the strategy to use for an interface. The threaded
// strategy is always chosen: it is the cheapest one that still keeps the
// caller responsive.
func SelectMethod(iface string) Method {
	return MethodThreaded
}

const (
	DefaultTimeout       = 15 * time.Second
	DefaultLegacyTimeout = 12 * time.Second
	DefaultGrace         = 500 * time.Millisecond
	DefaultPollInterval  = 100 * time.Millisecond
)

// Strategy is one way of running a scan. The lifecycle is
// Init -> Execute* -> Cleanup; Cleanup may be called more than once.
type Strategy interface {
	Method() Method
	Init(iface string) error
	// Execute runs one scan into results and returns how many records were
	// written. The capacity is len(results).
	Execute(ctx context.Context, results []wifi.ScanRecord) (int, error)
	Cleanup() error
}

// Options tunes a Strategy. Zero values are replaced with defaults.
type Options struct {
	// Timeout bounds a single Execute. The forked-shm method defaults to
	// DefaultLegacyTimeout.
	Timeout time.Duration
	// Grace is how long a worker process may take to exit after SIGTERM.
	Grace        time.Duration
	PollInterval time.Duration
	// Capacity sizes the result buffers a Threaded worker hands to its
	// callback. Defaults to wifi.MaxScanResults.
	Capacity int
	// Worker describes how worker processes are spawned. Required by the
	// pipe, signal and forked-shm methods.
	Worker *Worker
	Logger *slog.Logger
}

func (o Options) withDefaults(m Method) Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
		if m == MethodForkedSHM {
			o.Timeout = DefaultLegacyTimeout
		}
	}
	if o.Grace <= 0 {
		o.Grace = DefaultGrace
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	o.Logger = o.Logger.With("method", m.String())
	return o
}

// New creates a Strategy for the given method around a Scan Provider.
func New(m Method, scanner wifi.Scanner, opts Options) (Strategy, error) {
	if scanner == nil {
		return nil, fmt.Errorf("nil scanner: %w", ErrSetup)
	}
	opts = opts.withDefaults(m)
	switch m {
	case MethodDirect:
		return NewDirect(scanner), nil
	case MethodThreaded:
		return NewThreaded(scanner, opts), nil
	case MethodPipe, MethodSignal, MethodForkedSHM:
		return newProcessStrategy(m, scanner, opts)
	}
	return nil, fmt.Errorf("unknown scan method %v: %w", m, wifi.ErrNotSupported)
}

// deadline returns the earlier of now+timeout and the context's deadline.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
