package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shazow/wifiscan/wifi"
	"github.com/shazow/wifiscan/wifi/mock"
)

// Scan Provider names accepted by -provider.
const (
	providerAuto           = "auto"
	providerNetworkManager = "networkmanager"
	providerIWD            = "iwd"
	providerMock           = "mock"
)

// GetScanner builds the named Scan Provider.
func GetScanner(name string, logger *slog.Logger) (wifi.Scanner, error) {
	_, s, err := ResolveScanner(name, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ResolveScanner builds the named Scan Provider and returns the concrete
// provider name it settled on, so that "auto" is decided once. Worker
// processes are handed the resolved name.
func ResolveScanner(name string, logger *slog.Logger) (string, wifi.Scanner, error) {
	switch name {
	case "", providerAuto:
		return getPlatformScanner(logger)
	case providerMock:
		return resolveMock()
	case providerNetworkManager, providerIWD:
		return getNamedScanner(name, logger)
	}
	return "", nil, fmt.Errorf("unknown provider %q: %w", name, wifi.ErrNotFound)
}

// resolveMock builds the stub provider from WIFISCAN_MOCK_* variables.
func resolveMock() (string, wifi.Scanner, error) {
	s, err := mock.FromEnviron(os.Getenv)
	if err != nil {
		return "", nil, err
	}
	return providerMock, s, nil
}
