//go:build mock

package main

import (
	"log/slog"

	"github.com/shazow/wifiscan/wifi"
)

func getPlatformScanner(logger *slog.Logger) (string, wifi.Scanner, error) {
	return resolveMock()
}

func getNamedScanner(name string, logger *slog.Logger) (string, wifi.Scanner, error) {
	logger.Warn("built with the mock provider only", "provider", name)
	return resolveMock()
}
