//go:build linux

package networkmanager

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"

	"github.com/shazow/wifiscan/wifi"
)

// NM_802_11_AP_SEC_KEY_MGMT_SAE, which marks WPA3-Personal.
const keyMgmtSAE = 0x400

// Scanner implements wifi.Scanner using D-Bus to communicate with NetworkManager.
type Scanner struct {
	NM     gonetworkmanager.NetworkManager
	Logger *slog.Logger

	mu      sync.Mutex
	devices map[string]gonetworkmanager.DeviceWireless
}

// New creates a new networkmanager.Scanner.
func New(logger *slog.Logger) (*Scanner, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create network manager client: %w", wifi.ErrNotAvailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{NM: nm, Logger: logger}, nil
}

// getWirelessDevice returns the wireless device bound to iface, caching the
// lookup.
func (s *Scanner) getWirelessDevice(iface string) (gonetworkmanager.DeviceWireless, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dev, ok := s.devices[iface]; ok {
		return dev, nil
	}

	devices, err := s.NM.GetDevices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w: %w", wifi.ErrOperationFailed, err)
	}
	for _, device := range devices {
		dev, ok := device.(gonetworkmanager.DeviceWireless)
		if !ok {
			continue
		}
		name, err := dev.GetPropertyInterface()
		if err != nil || name != iface {
			continue
		}
		if s.devices == nil {
			s.devices = make(map[string]gonetworkmanager.DeviceWireless)
		}
		s.devices[iface] = dev
		return dev, nil
	}
	return nil, fmt.Errorf("no wireless device %s: %w", iface, wifi.ErrNotFound)
}

func (s *Scanner) Scan(ctx context.Context, iface string, max int) ([]wifi.ScanRecord, error) {
	enabled, err := s.NM.GetPropertyWirelessEnabled()
	if err != nil {
		return nil, fmt.Errorf("query wireless state: %w: %w", wifi.ErrScanFailed, err)
	}
	if !enabled {
		return nil, wifi.ErrWirelessDisabled
	}

	dev, err := s.getWirelessDevice(iface)
	if err != nil {
		return nil, err
	}

	// A scan that NetworkManager refuses (usually because one is already
	// running) still leaves the cached access points worth reporting.
	if err := dev.RequestScan(); err != nil {
		s.Logger.Debug("scan request refused", "interface", iface, "err", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	aps, err := dev.GetAccessPoints()
	if err != nil {
		return nil, fmt.Errorf("list access points on %s: %w: %w", iface, wifi.ErrScanFailed, err)
	}

	now := time.Now().UTC()
	records := make([]wifi.ScanRecord, 0, min(len(aps), max))
	for _, ap := range aps {
		if len(records) >= max {
			break
		}
		r, err := accessPointRecord(ap, now)
		if err != nil {
			s.Logger.Debug("skipping access point", "path", ap.GetPath(), "err", err)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func accessPointRecord(ap gonetworkmanager.AccessPoint, at time.Time) (wifi.ScanRecord, error) {
	bssid, err := ap.GetPropertyHWAddress()
	if err != nil {
		return wifi.ScanRecord{}, err
	}
	ssid, _ := ap.GetPropertySSID()
	freq, _ := ap.GetPropertyFrequency()
	strength, _ := ap.GetPropertyStrength()
	flags, _ := ap.GetPropertyFlags()
	wpaFlags, _ := ap.GetPropertyWPAFlags()
	rsnFlags, _ := ap.GetPropertyRSNFlags()

	privacy := uint32(flags)&uint32(gonetworkmanager.Nm80211APFlagsPrivacy) != 0
	r := wifi.NewScanRecord(strings.ToUpper(bssid), ssid, int(freq), strengthToDBm(strength),
		security(privacy, uint32(wpaFlags), uint32(rsnFlags)), at)
	r.Capabilities = capabilities(privacy, uint32(wpaFlags), uint32(rsnFlags))
	return r, nil
}

// strengthToDBm inverts NetworkManager's signal quality mapping, which is
// linear between -100 dBm (0%) and -40 dBm (100%).
func strengthToDBm(strength uint8) int {
	return -40 - (100-int(min(strength, 100)))*60/100
}

func security(privacy bool, wpaFlags, rsnFlags uint32) wifi.SecurityType {
	switch {
	case rsnFlags&keyMgmtSAE != 0:
		return wifi.SecurityWPA3
	case rsnFlags != 0:
		return wifi.SecurityWPA2
	case wpaFlags != 0:
		return wifi.SecurityWPA
	case privacy:
		return wifi.SecurityWEP
	}
	return wifi.SecurityOpen
}

func capabilities(privacy bool, wpaFlags, rsnFlags uint32) string {
	caps := []string{"ESS"}
	if privacy {
		caps = append(caps, "Privacy")
	}
	if wpaFlags != 0 {
		caps = append(caps, "WPA")
	}
	if rsnFlags != 0 {
		caps = append(caps, "RSN")
	}
	return strings.Join(caps, " ")
}
