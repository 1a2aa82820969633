//go:build linux

package networkmanager

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	gonetworkmanager "github.com/Wifx/gonetworkmanager/v3"
	"github.com/godbus/dbus/v5"

	"github.com/shazow/wifiscan/wifi"
)

type mockNM struct {
	gonetworkmanager.NetworkManager
	getDevicesFunc                 func() ([]gonetworkmanager.Device, error)
	getPropertyWirelessEnabledFunc func() (bool, error)
}

func (m *mockNM) GetDevices() ([]gonetworkmanager.Device, error) {
	if m.getDevicesFunc != nil {
		return m.getDevicesFunc()
	}
	return nil, nil
}

func (m *mockNM) GetPropertyWirelessEnabled() (bool, error) {
	if m.getPropertyWirelessEnabledFunc != nil {
		return m.getPropertyWirelessEnabledFunc()
	}
	return true, nil
}

type mockDeviceWireless struct {
	gonetworkmanager.DeviceWireless
	iface     string
	aps       []gonetworkmanager.AccessPoint
	scanErr   error
	scanCalls int
}

func (m *mockDeviceWireless) GetPropertyInterface() (string, error) { return m.iface, nil }

func (m *mockDeviceWireless) RequestScan() error {
	m.scanCalls++
	return m.scanErr
}

func (m *mockDeviceWireless) GetAccessPoints() ([]gonetworkmanager.AccessPoint, error) {
	return m.aps, nil
}

type mockAP struct {
	gonetworkmanager.AccessPoint
	ssid     string
	bssid    string
	freq     uint32
	strength uint8
	flags    uint32
	wpa      uint32
	rsn      uint32
}

func (m *mockAP) GetPath() dbus.ObjectPath { return "/org/freedesktop/NetworkManager/AccessPoint/1" }
func (m *mockAP) GetPropertySSID() (string, error) { return m.ssid, nil }
func (m *mockAP) GetPropertyHWAddress() (string, error) { return m.bssid, nil }
func (m *mockAP) GetPropertyFrequency() (uint32, error) { return m.freq, nil }
func (m *mockAP) GetPropertyStrength() (uint8, error) { return m.strength, nil }
func (m *mockAP) GetPropertyFlags() (uint32, error) { return m.flags, nil }
func (m *mockAP) GetPropertyWPAFlags() (uint32, error) { return m.wpa, nil }
func (m *mockAP) GetPropertyRSNFlags() (uint32, error) { return m.rsn, nil }

func TestGetWirelessDevice_Caching(t *testing.T) {
	callCount := 0
	mockDev := &mockDeviceWireless{iface: "wlan0"}

	nm := &mockNM{
		getDevicesFunc: func() ([]gonetworkmanager.Device, error) {
			callCount++
			return []gonetworkmanager.Device{mockDev}, nil
		},
	}

	s := &Scanner{
		NM: nm,
	}

	// First call
	dev, err := s.getWirelessDevice("wlan0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev != mockDev {
		t.Errorf("expected device %v, got %v", mockDev, dev)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	// Second call (should be cached)
	dev2, err := s.getWirelessDevice("wlan0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev2 != mockDev {
		t.Errorf("expected device %v, got %v", mockDev, dev2)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if _, err := s.getWirelessDevice("wlan1"); !errors.Is(err, wifi.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown interface, got %v", err)
	}
}

func TestScan(t *testing.T) {
	dev := &mockDeviceWireless{
		iface:   "wlan0",
		scanErr: errors.New("scanning not allowed while already scanning"),
		aps: []gonetworkmanager.AccessPoint{
			&mockAP{ssid: "TacoBoutAGoodSignal", bssid: "aa:bb:cc:dd:ee:ff", freq: 2437, strength: 100, flags: 1, rsn: 0x100},
			&mockAP{ssid: "Unencrypted_Honeypot", bssid: "00:11:22:33:44:55", freq: 5180, strength: 50},
			&mockAP{ssid: "Dunder MiffLAN", bssid: "00:11:22:33:44:66", freq: 5955, strength: 0, flags: 1, rsn: keyMgmtSAE},
		},
	}
	s := &Scanner{
		NM: &mockNM{getDevicesFunc: func() ([]gonetworkmanager.Device, error) {
			return []gonetworkmanager.Device{dev}, nil
		}},
		Logger: testLogger(t),
	}

	records, err := s.Scan(context.Background(), "wlan0", 2)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if dev.scanCalls != 1 {
		t.Errorf("expected 1 scan request, got %d", dev.scanCalls)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	r := records[0]
	if r.BSSID != "AA:BB:CC:DD:EE:FF" || r.Channel != 6 || r.Signal != -40 || r.Quality != 83 {
		t.Errorf("unexpected record %+v", r)
	}
	if r.Security != wifi.SecurityWPA2 || r.Capabilities != "ESS Privacy RSN" {
		t.Errorf("unexpected security %v / %q", r.Security, r.Capabilities)
	}
	if records[1].Security != wifi.SecurityOpen || records[1].Signal != -70 || records[1].Channel != 36 {
		t.Errorf("unexpected record %+v", records[1])
	}

	all, err := s.Scan(context.Background(), "wlan0", wifi.MaxScanResults)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if all[2].Security != wifi.SecurityWPA3 || all[2].Signal != -100 {
		t.Errorf("unexpected record %+v", all[2])
	}
}

func TestScanWirelessDisabled(t *testing.T) {
	s := &Scanner{
		NM: &mockNM{getPropertyWirelessEnabledFunc: func() (bool, error) {
			return false, nil
		}},
	}
	if _, err := s.Scan(context.Background(), "wlan0", 10); !errors.Is(err, wifi.ErrWirelessDisabled) {
		t.Errorf("expected ErrWirelessDisabled, got %v", err)
	}
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
