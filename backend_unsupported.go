//go:build !linux && !mock

package main

import (
	"fmt"
	"log/slog"

	"github.com/shazow/wifiscan/wifi"
)

// getPlatformScanner returns an error for unsupported operating systems.
func getPlatformScanner(logger *slog.Logger) (string, wifi.Scanner, error) {
	return "", nil, fmt.Errorf("unsupported operating system: %w", wifi.ErrNotSupported)
}

func getNamedScanner(name string, logger *slog.Logger) (string, wifi.Scanner, error) {
	return "", nil, fmt.Errorf("%s provider: %w", name, wifi.ErrNotSupported)
}
