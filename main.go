package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/shazow/wifiscan/internal/config"
	"github.com/shazow/wifiscan/internal/debug"
	scanlog "github.com/shazow/wifiscan/internal/log"
	"github.com/shazow/wifiscan/scan"
	"github.com/shazow/wifiscan/wifi"
)

var (
	// Version is the version of the application. It is set at build time.
	Version string = "dev"
)

// main is the entry point of the application
func main() {
	// Worker processes are this binary re-executed by a scan strategy.
	if scan.IsWorker() {
		os.Exit(scan.RunWorker(context.Background(), func(name string) (wifi.Scanner, error) {
			return GetScanner(name, slog.Default())
		}))
	}

	var (
		rootFlagSet = flag.NewFlagSet("wifiscan", flag.ExitOnError)
		configPath  = rootFlagSet.String("config", "", "path to config toml file (env: WIFISCAN_CONFIG)")
		provider    = rootFlagSet.String("provider", "", "scan provider: auto, networkmanager, iwd, mock (env: WIFISCAN_PROVIDER)")
		iface       = rootFlagSet.String("interface", "", "wireless interface to scan (env: WIFISCAN_INTERFACE)")
		timeout     = rootFlagSet.Duration("timeout", 0, "bound on a single scan (env: WIFISCAN_TIMEOUT)")
		debugLog    = rootFlagSet.String("debug-log", "", "write a rotating debug log to this path (env: WIFISCAN_DEBUG_LOG)")
		verbose     = rootFlagSet.Bool("verbose", false, "log debug messages to stderr")
		version     = rootFlagSet.Bool("version", false, "display version")
	)

	a := &app{}

	scanFlagSet := flag.NewFlagSet("scan", flag.ExitOnError)
	scanMethod := scanFlagSet.String("method", "", "execution strategy: direct, threaded, pipe, signal, forked-shm")
	scanCmd := &ffcli.Command{
		Name:       "scan",
		ShortUsage: "wifiscan scan [-method m] [interface]",
		ShortHelp:  "Scan once and print the networks found",
		FlagSet:    scanFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			target, err := pickInterface(a.cfg, args)
			if err != nil {
				return err
			}
			return a.runScan(ctx, os.Stdout, pick(*scanMethod, a.cfg.Method), target)
		},
	}

	watchFlagSet := flag.NewFlagSet("watch", flag.ExitOnError)
	watchMethod := watchFlagSet.String("method", "", "execution strategy: direct, threaded, pipe, signal, forked-shm")
	watchDelay := watchFlagSet.Duration("delay", 0, "pause between scans, at least 500ms")
	watchCount := watchFlagSet.Int("count", 0, "stop after this many scans (0 runs until interrupted)")
	watchCmd := &ffcli.Command{
		Name:       "watch",
		ShortUsage: "wifiscan watch [-method m] [-delay d] [-count n] [interface]",
		ShortHelp:  "Scan repeatedly until interrupted",
		FlagSet:    watchFlagSet,
		Exec: func(ctx context.Context, args []string) error {
			target, err := pickInterface(a.cfg, args)
			if err != nil {
				return err
			}
			delay := a.cfg.Delay.Duration
			if *watchDelay != 0 {
				delay = *watchDelay
			}
			return a.runWatch(ctx, os.Stdout, pick(*watchMethod, a.cfg.Method), target, delay, *watchCount)
		},
	}

	methodsCmd := &ffcli.Command{
		Name:      "methods",
		ShortHelp: "List execution strategies",
		FlagSet:   flag.NewFlagSet("methods", flag.ExitOnError),
		Exec: func(ctx context.Context, args []string) error {
			return runMethods(os.Stdout, a.cfg.Interface)
		},
	}

	root := &ffcli.Command{
		ShortUsage:  "wifiscan [flags] <subcommand> [args...]",
		FlagSet:     rootFlagSet,
		Options:     []ff.Option{ff.WithEnvVarPrefix("WIFISCAN")},
		Subcommands: []*ffcli.Command{scanCmd, watchCmd, methodsCmd},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if *version {
		fmt.Println(Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg, rootFlagSet, *provider, *iface, *timeout, *debugLog)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if cfg.DebugLog != "" {
		w := debug.Open(cfg.DebugLog)
		defer w.Close()
		handler = scanlog.Tee(handler, debug.NewHandler(w))
	}
	scanlog.Init(handler)

	if cfg.Provider == "" {
		cfg.Provider = providerAuto
	}
	a.cfg = cfg
	a.logger = slog.Default()
	a.newScanner = func(name string) (string, wifi.Scanner, error) {
		return ResolveScanner(name, a.logger)
	}
	a.worker = &scan.Worker{Provider: cfg.Provider}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, ffcli.DefaultUsageFunc(root))
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		for _, r := range scanlog.Warnings() {
			fmt.Fprintf(os.Stderr, "  %s %s\n", r.Level, r.Message)
		}
		stop()
		os.Exit(1)
	}
}

// applyFlags lets explicitly set root flags (or their env vars) override
// the config file.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, provider, iface string, timeout time.Duration, debugLog string) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "provider":
			cfg.Provider = provider
		case "interface":
			cfg.Interface = iface
		case "timeout":
			cfg.Timeout.Duration = timeout
			cfg.LegacyTimeout.Duration = timeout
		case "debug-log":
			cfg.DebugLog = debugLog
		}
	})
}

func pick(flagValue, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	return fallback
}

func pickInterface(cfg config.Config, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Interface != "" {
		return cfg.Interface, nil
	}
	return "", fmt.Errorf("no interface given, pass one or set -interface: %w", wifi.ErrInvalidInterface)
}
