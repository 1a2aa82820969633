package mock

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

var DefaultActionSleep = 500 * time.Millisecond

// Environment variables used to hand a Scanner configuration to a worker
// process.
const (
	EnvCount = "WIFISCAN_MOCK_COUNT"
	EnvDelay = "WIFISCAN_MOCK_DELAY"
	EnvHang  = "WIFISCAN_MOCK_HANG"
	EnvFail  = "WIFISCAN_MOCK_FAIL"
)

// epoch anchors generated timestamps so that records are reproducible.
var epoch = time.Date(2024, time.March, 14, 15, 9, 26, 0, time.UTC)

var ssids = []string{
	"HideYoKidsHideYoWiFi",
	"GET off my LAN",
	"NeverGonnaGiveYouIP",
	"Unencrypted_Honeypot",
	"YourWiFi.exe",
	"I See Dead Packets",
	"Dunder MiffLAN",
	"Police Surveillance 2",
	"I Believe Wi Can Fi",
	"Hot singles in your area",
	"Password is password",
	"TacoBoutAGoodSignal",
	"Multi-AP Network",
	"Wi-Fight the Feeling?",
	"xX_D4rkR0ut3r_Xx",
	"Luke I am your WiFi",
	"FreeHugsAndWiFi",
	"",
}

var securities = []wifi.SecurityType{
	wifi.SecurityWPA2,
	wifi.SecurityWPA,
	wifi.SecurityWEP,
	wifi.SecurityOpen,
	wifi.SecurityWPA3,
}

var frequencies = []int{2412, 2437, 2462, 5180, 5240, 5745, 5955}

// Records returns n deterministic scan records.
func Records(n int) []wifi.ScanRecord {
	records := make([]wifi.ScanRecord, n)
	for i := range records {
		r := wifi.NewScanRecord(
			fmt.Sprintf("02:00:00:00:%02x:%02x", i/256, i%256),
			ssids[i%len(ssids)],
			frequencies[i%len(frequencies)],
			-35-(i*7)%60,
			securities[i%len(securities)],
			epoch.Add(time.Duration(i)*time.Second),
		)
		if r.Security != wifi.SecurityOpen {
			r.Capabilities = "ESS Privacy"
		} else {
			r.Capabilities = "ESS"
		}
		records[i] = r
	}
	return records
}

// Scanner is a stub Scan Provider with configurable results, latency and
// failure.
type Scanner struct {
	Networks []wifi.ScanRecord
	// ScanError, when set, is returned by every Scan.
	ScanError       error
	WirelessEnabled bool
	// Hang makes Scan block until its context is done.
	Hang bool

	// ActionSleep is a delay before every scan, to better emulate a real-world provider. Set to 0 during testing.
	ActionSleep time.Duration

	calls atomic.Int32
}

// New creates a mock Scanner with a list of fun wifi networks.
func New() *Scanner {
	return &Scanner{
		Networks:        Records(len(ssids)),
		WirelessEnabled: true,
		ActionSleep:     DefaultActionSleep,
	}
}

// Calls returns how many times Scan has been invoked.
func (s *Scanner) Calls() int {
	return int(s.calls.Load())
}

func (s *Scanner) Scan(ctx context.Context, iface string, max int) ([]wifi.ScanRecord, error) {
	s.calls.Add(1)

	if s.Hang {
		<-ctx.Done()
		return nil, fmt.Errorf("scan on %s abandoned: %w", iface, ctx.Err())
	}
	if s.ActionSleep > 0 {
		timer := time.NewTimer(s.ActionSleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("scan on %s abandoned: %w", iface, ctx.Err())
		}
	}

	if !s.WirelessEnabled {
		return nil, wifi.ErrWirelessDisabled
	}
	if s.ScanError != nil {
		return nil, s.ScanError
	}

	n := min(len(s.Networks), max)
	out := make([]wifi.ScanRecord, n)
	copy(out, s.Networks)
	return out, nil
}

// Environ encodes the Scanner's configuration as environment entries that
// FromEnviron understands.
func (s *Scanner) Environ() []string {
	env := []string{
		EnvCount + "=" + strconv.Itoa(len(s.Networks)),
		EnvDelay + "=" + s.ActionSleep.String(),
	}
	if s.Hang {
		env = append(env, EnvHang+"=1")
	}
	if s.ScanError != nil {
		env = append(env, EnvFail+"="+s.ScanError.Error())
	} else if !s.WirelessEnabled {
		env = append(env, EnvFail+"="+wifi.ErrWirelessDisabled.Error())
	}
	return env
}

// FromEnviron builds a Scanner from variables written by Environ. Unset
// variables keep the defaults of New.
func FromEnviron(getenv func(string) string) (*Scanner, error) {
	s := New()
	if v := getenv(EnvCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q", EnvCount, v)
		}
		s.Networks = Records(n)
	}
	if v := getenv(EnvDelay); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvDelay, err)
		}
		s.ActionSleep = d
	}
	if getenv(EnvHang) != "" {
		s.Hang = true
	}
	if v := getenv(EnvFail); v != "" {
		s.ScanError = fmt.Errorf("%s: %w", v, wifi.ErrScanFailed)
	}
	return s, nil
}
