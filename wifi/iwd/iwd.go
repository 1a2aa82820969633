//go:build linux

package iwd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/shazow/wifiscan/wifi"
)

const scanPollInterval = 250 * time.Millisecond

// IWD constants
const (
	iwdDest           = "net.connman.iwd"
	iwdPath           = "/"
	iwdDeviceIface    = "net.connman.iwd.Device"
	iwdNetworkIface   = "net.connman.iwd.Network"
	iwdStationIface   = "net.connman.iwd.Station"
	iwdBSSIface       = "net.connman.iwd.BasicServiceSet"
	objectManager     = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	errScanInProgress = "net.connman.iwd.InProgress"
	errScanBusy       = "net.connman.iwd.Busy"
)

// managedObjects is the reply of ObjectManager.GetManagedObjects.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// orderedNetwork is one entry of Station.GetOrderedNetworks. Signal is in
// hundredths of a dBm.
type orderedNetwork struct {
	Path   dbus.ObjectPath
	Signal int16
}

// Scanner implements wifi.Scanner using iwd.
type Scanner struct {
	conn   *dbus.Conn
	logger *slog.Logger
}

// New creates a new iwd.Scanner.
func New(logger *slog.Logger) (*Scanner, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", wifi.ErrNotAvailable)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{conn: conn, logger: logger}
	// A simple way to check for availability is to list iwd's objects.
	if _, err := s.objects(context.Background()); err != nil {
		return nil, fmt.Errorf("iwd is not available: %w", wifi.ErrNotAvailable)
	}
	return s, nil
}

func (s *Scanner) objects(ctx context.Context) (managedObjects, error) {
	var objs managedObjects
	err := s.conn.Object(iwdDest, iwdPath).CallWithContext(ctx, objectManager, 0).Store(&objs)
	return objs, err
}

func (s *Scanner) Scan(ctx context.Context, iface string, max int) ([]wifi.ScanRecord, error) {
	objs, err := s.objects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list iwd objects: %w: %w", wifi.ErrScanFailed, err)
	}
	station, err := findStation(objs, iface)
	if err != nil {
		return nil, err
	}

	obj := s.conn.Object(iwdDest, station)
	if err := obj.CallWithContext(ctx, iwdStationIface+".Scan", 0).Err; err != nil {
		var dbusErr dbus.Error
		if !errors.As(err, &dbusErr) || (dbusErr.Name != errScanInProgress && dbusErr.Name != errScanBusy) {
			return nil, fmt.Errorf("request scan on %s: %w: %w", iface, wifi.ErrScanFailed, err)
		}
		s.logger.Debug("scan already in progress", "interface", iface)
	}
	if err := s.waitForScan(ctx, obj); err != nil {
		return nil, err
	}

	var ordered []orderedNetwork
	if err := obj.CallWithContext(ctx, iwdStationIface+".GetOrderedNetworks", 0).Store(&ordered); err != nil {
		return nil, fmt.Errorf("list networks on %s: %w: %w", iface, wifi.ErrScanFailed, err)
	}
	// Networks found by the scan may not have been in the first listing.
	if objs, err = s.objects(ctx); err != nil {
		return nil, fmt.Errorf("list iwd objects: %w: %w", wifi.ErrScanFailed, err)
	}
	return networkRecords(objs, ordered, max, time.Now().UTC()), nil
}

// waitForScan polls the station until it stops scanning.
func (s *Scanner) waitForScan(ctx context.Context, obj dbus.BusObject) error {
	ticker := time.NewTicker(scanPollInterval)
	defer ticker.Stop()
	for {
		v, err := obj.GetProperty(iwdStationIface + ".Scanning")
		if err != nil {
			return fmt.Errorf("query scan state: %w: %w", wifi.ErrScanFailed, err)
		}
		if scanning, _ := v.Value().(bool); !scanning {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func findStation(objs managedObjects, iface string) (dbus.ObjectPath, error) {
	for path, ifaces := range objs {
		dev, ok := ifaces[iwdDeviceIface]
		if !ok {
			continue
		}
		if _, ok := ifaces[iwdStationIface]; !ok {
			continue
		}
		if name, _ := dev["Name"].Value().(string); name == iface {
			return path, nil
		}
	}
	return "", fmt.Errorf("no iwd station %s: %w", iface, wifi.ErrNotFound)
}

// networkRecords turns ordered networks into one record per access point.
// iwd does not report frequencies, so Frequency and Channel stay zero.
func networkRecords(objs managedObjects, ordered []orderedNetwork, max int, at time.Time) []wifi.ScanRecord {
	var records []wifi.ScanRecord
	for _, n := range ordered {
		network, ok := objs[n.Path][iwdNetworkIface]
		if !ok {
			continue
		}
		ssid, _ := network["Name"].Value().(string)
		typ, _ := network["Type"].Value().(string)
		security := securityType(typ)
		dBm := int(n.Signal) / 100

		bssids := bssAddresses(objs, network)
		if len(bssids) == 0 {
			bssids = []string{""}
		}
		for _, bssid := range bssids {
			if len(records) >= max {
				return records
			}
			r := wifi.NewScanRecord(bssid, ssid, 0, dBm, security, at)
			r.Capabilities = "ESS"
			if security != wifi.SecurityOpen {
				r.Capabilities += " Privacy"
			}
			records = append(records, r)
		}
	}
	return records
}

func bssAddresses(objs managedObjects, network map[string]dbus.Variant) []string {
	paths, _ := network["ExtendedServiceSet"].Value().([]dbus.ObjectPath)
	var out []string
	for _, p := range paths {
		if addr, ok := objs[p][iwdBSSIface]["Address"].Value().(string); ok {
			out = append(out, strings.ToUpper(addr))
		}
	}
	return out
}

func securityType(typ string) wifi.SecurityType {
	switch typ {
	case "open":
		return wifi.SecurityOpen
	case "wep":
		return wifi.SecurityWEP
	case "psk", "8021x":
		return wifi.SecurityWPA2
	}
	return wifi.SecurityEncrypted
}
