package log

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// keep is how many records a Handler remembers.
const keep = 20

// recent is the ring of records shared by a Handler and its derivatives.
type recent struct {
	mu   sync.Mutex
	logs []slog.Record
}

func (r *recent) add(rec slog.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, rec.Clone())
	if len(r.logs) > keep {
		r.logs = r.logs[1:]
	}
}

// Handler is a slog.Handler that remembers the most recent records it
// handled, so they can be shown when a command fails.
type Handler struct {
	slog.Handler
	recent *recent
}

// NewHandler creates a new Handler wrapping handler.
func NewHandler(handler slog.Handler) *Handler {
	return &Handler{
		Handler: handler,
		recent:  &recent{},
	}
}

// Handle stores the record and passes it on.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	h.recent.add(r)
	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs), recent: h.recent}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name), recent: h.recent}
}

// Logs returns the stored log records, oldest first.
func (h *Handler) Logs() []slog.Record {
	h.recent.mu.Lock()
	defer h.recent.mu.Unlock()
	return append([]slog.Record(nil), h.recent.logs...)
}

// Since returns the stored records at or above level.
func (h *Handler) Since(level slog.Level) []slog.Record {
	var out []slog.Record
	for _, r := range h.Logs() {
		if r.Level >= level {
			out = append(out, r)
		}
	}
	return out
}

// multiHandler fans records out to several handlers.
type multiHandler []slog.Handler

// Tee returns a handler that sends every record to all of handlers.
func Tee(handlers ...slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return multiHandler(handlers)
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

var defaultHandler = NewHandler(slog.Default().Handler())

// Init initializes the default logger.
func Init(handler slog.Handler) {
	defaultHandler = NewHandler(handler)
	slog.SetDefault(slog.New(defaultHandler))
}

// Logs returns the stored log messages from the default logger.
func Logs() []slog.Record {
	return defaultHandler.Logs()
}

// Warnings returns the stored warnings and errors from the default logger.
func Warnings() []slog.Record {
	return defaultHandler.Since(slog.LevelWarn)
}
