//go:build !linux

package scan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shazow/wifiscan/wifi"
)

func newProcessStrategy(m Method, scanner wifi.Scanner, opts Options) (Strategy, error) {
	return nil, fmt.Errorf("%v method: %w", m, wifi.ErrNotSupported)
}

// RunWorker is only available on Linux.
func RunWorker(ctx context.Context, lookup ProviderLookup) int {
	slog.Error("worker processes are not supported on this platform")
	return 2
}
