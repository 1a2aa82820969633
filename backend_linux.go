//go:build linux && !mock

package main

import (
	"log/slog"

	"github.com/shazow/wifiscan/wifi"
	"github.com/shazow/wifiscan/wifi/iwd"
	"github.com/shazow/wifiscan/wifi/networkmanager"
)

func getPlatformScanner(logger *slog.Logger) (string, wifi.Scanner, error) {
	s, err := newNetworkManager(logger)
	if err == nil {
		return providerNetworkManager, s, nil
	}
	logger.Warn("failed to initialize networkmanager provider, falling back to iwd", "error", err)
	// If networkmanager dbus provider failed to initialize, try the iwd provider
	s, err = newIWD(logger)
	if err != nil {
		return "", nil, err
	}
	return providerIWD, s, nil
}

func getNamedScanner(name string, logger *slog.Logger) (string, wifi.Scanner, error) {
	var (
		s   wifi.Scanner
		err error
	)
	if name == providerIWD {
		s, err = newIWD(logger)
	} else {
		s, err = newNetworkManager(logger)
	}
	if err != nil {
		return "", nil, err
	}
	return name, s, nil
}

func newNetworkManager(logger *slog.Logger) (wifi.Scanner, error) {
	s, err := networkmanager.New(logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newIWD(logger *slog.Logger) (wifi.Scanner, error) {
	s, err := iwd.New(logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}
