package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shazow/wifiscan/scan"
	"github.com/shazow/wifiscan/wifi"
)

// Duration is a time.Duration written as a string ("1.5s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds the scanner's tuning knobs.
type Config struct {
	Provider      string   `toml:"provider"`
	Interface     string   `toml:"interface"`
	Method        string   `toml:"method"`
	Delay         Duration `toml:"delay"`
	Timeout       Duration `toml:"timeout"`
	LegacyTimeout Duration `toml:"legacy_timeout"`
	Grace         Duration `toml:"grace"`
	PollInterval  Duration `toml:"poll_interval"`
	Capacity      int      `toml:"capacity"`
	DebugLog      string   `toml:"debug_log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Method:        scan.SelectMethod("").String(),
		Delay:         Duration{2 * time.Second},
		Timeout:       Duration{scan.DefaultTimeout},
		LegacyTimeout: Duration{scan.DefaultLegacyTimeout},
		Grace:         Duration{scan.DefaultGrace},
		PollInterval:  Duration{scan.DefaultPollInterval},
		Capacity:      wifi.MaxScanResults,
	}
}

// Load reads the TOML file at path over the defaults. An empty path returns
// the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	if _, err := scan.ParseMethod(c.Method); err != nil {
		return err
	}
	if c.Interface != "" {
		if err := wifi.ValidateInterface(c.Interface); err != nil {
			return err
		}
	}
	if c.Capacity < 1 || c.Capacity > wifi.MaxScanResults {
		return fmt.Errorf("capacity %d must be between 1 and %d", c.Capacity, wifi.MaxScanResults)
	}
	for name, d := range map[string]Duration{
		"timeout":        c.Timeout,
		"legacy_timeout": c.LegacyTimeout,
		"grace":          c.Grace,
		"poll_interval":  c.PollInterval,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d.Duration)
		}
	}
	return nil
}

// Options returns the strategy options for method m.
func (c Config) Options(m scan.Method) scan.Options {
	timeout := c.Timeout.Duration
	if m == scan.MethodForkedSHM {
		timeout = c.LegacyTimeout.Duration
	}
	return scan.Options{
		Timeout:      timeout,
		Grace:        c.Grace.Duration,
		PollInterval: c.PollInterval.Duration,
		Capacity:     c.Capacity,
	}
}
