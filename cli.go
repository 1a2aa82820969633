package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shazow/wifiscan/internal/config"
	"github.com/shazow/wifiscan/scan"
	"github.com/shazow/wifiscan/wifi"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	newScanner func(name string) (string, wifi.Scanner, error)
	worker     *scan.Worker
}

func (a *app) strategy(methodName string) (scan.Strategy, error) {
	m, err := scan.ParseMethod(methodName)
	if err != nil {
		return nil, err
	}
	provider, scanner, err := a.newScanner(a.cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", a.cfg.Provider, err)
	}
	opts := a.cfg.Options(m)
	opts.Worker = a.workerFor(provider)
	opts.Logger = a.logger
	return scan.New(m, scanner, opts)
}

// workerFor returns the worker settings with the provider pinned to the one
// this process resolved.
func (a *app) workerFor(provider string) *scan.Worker {
	if a.worker == nil {
		return nil
	}
	w := *a.worker
	w.Provider = provider
	return &w
}

func (a *app) runScan(ctx context.Context, w io.Writer, methodName, iface string) error {
	s, err := a.strategy(methodName)
	if err != nil {
		return err
	}
	if err := s.Init(iface); err != nil {
		return fmt.Errorf("failed to initialize %v scan: %w", s.Method(), err)
	}
	defer s.Cleanup()

	results := make([]wifi.ScanRecord, a.cfg.Capacity)
	n, err := s.Execute(ctx, results)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", iface, err)
	}
	writeRecords(w, results[:n])
	return nil
}

// runWatch scans until ctx is cancelled, or count scans have been reported
// when count is positive.
func (a *app) runWatch(ctx context.Context, w io.Writer, methodName, iface string, delay time.Duration, count int) error {
	s, err := a.strategy(methodName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := &scan.Loop{
		Strategy:  s,
		Interface: iface,
		Delay:     delay,
		Capacity:  a.cfg.Capacity,
		Logger:    a.logger,
		OnWarning: func(msg string) {
			fmt.Fprintf(w, "warning: %s\n", msg)
		},
		OnResult: func(it scan.Iteration) {
			fmt.Fprintf(w, "# scan %d on %s via %v at %s: ", it.Number, it.Interface, it.Method, it.Time.Format(time.RFC3339))
			if it.Err != nil {
				fmt.Fprintf(w, "error: %v\n", it.Err)
			} else {
				fmt.Fprintf(w, "%d networks in %v\n", it.Count, it.Duration.Round(time.Millisecond))
				writeRecords(w, it.Records)
			}
			if count > 0 && it.Number >= count {
				cancel()
			}
		},
	}
	return loop.Run(ctx)
}

func runMethods(w io.Writer, iface string) error {
	recommended := scan.SelectMethod(iface)
	for _, m := range scan.Methods() {
		mark := ""
		if m == recommended {
			mark = " (recommended)"
		}
		fmt.Fprintf(w, "%s\t%s%s\n", m, m.Description(), mark)
	}
	return nil
}
