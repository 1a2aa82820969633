package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shazow/wifiscan/wifi"
)

func TestNew(t *testing.T) {
	s := New()
	if len(s.Networks) == 0 {
		t.Fatal("New() returned no networks")
	}
	if !s.WirelessEnabled {
		t.Error("expected wireless to be enabled")
	}
}

func TestRecordsDeterministic(t *testing.T) {
	a := Records(40)
	b := Records(40)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs: %+v != %+v", i, a[i], b[i])
		}
		if a[i].Quality != wifi.Quality(a[i].Signal) {
			t.Errorf("record %d quality %d does not match signal %d", i, a[i].Quality, a[i].Signal)
		}
		if a[i].Channel == 0 {
			t.Errorf("record %d has no channel for %d MHz", i, a[i].Frequency)
		}
	}
	if a[0].BSSID == a[1].BSSID {
		t.Error("expected unique BSSIDs")
	}
}

func TestScanCapacity(t *testing.T) {
	s := New()
	s.ActionSleep = 0

	got, err := s.Scan(context.Background(), "wlan0", 3)
	if err != nil {
		t.Fatalf("Scan() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if s.Calls() != 1 {
		t.Errorf("expected 1 call, got %d", s.Calls())
	}
}

func TestScanErrors(t *testing.T) {
	s := New()
	s.ActionSleep = 0
	s.WirelessEnabled = false
	if _, err := s.Scan(context.Background(), "wlan0", 10); !errors.Is(err, wifi.ErrWirelessDisabled) {
		t.Errorf("expected ErrWirelessDisabled, got %v", err)
	}

	s.WirelessEnabled = true
	s.ScanError = wifi.ErrScanFailed
	if _, err := s.Scan(context.Background(), "wlan0", 10); !errors.Is(err, wifi.ErrScanFailed) {
		t.Errorf("expected ErrScanFailed, got %v", err)
	}
}

func TestScanHangHonoursContext(t *testing.T) {
	s := New()
	s.Hang = true

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := s.Scan(ctx, "wlan0", 10); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestEnvironRoundTrip(t *testing.T) {
	s := New()
	s.Networks = Records(5)
	s.ActionSleep = 200 * time.Millisecond
	s.Hang = true
	s.ScanError = errors.New("radio on fire")

	env := map[string]string{}
	for _, kv := range s.Environ() {
		for i := range kv {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}

	got, err := FromEnviron(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("FromEnviron() failed: %v", err)
	}
	if len(got.Networks) != 5 {
		t.Errorf("expected 5 networks, got %d", len(got.Networks))
	}
	if got.ActionSleep != s.ActionSleep {
		t.Errorf("expected delay %v, got %v", s.ActionSleep, got.ActionSleep)
	}
	if !got.Hang {
		t.Error("expected hang to be set")
	}
	if !errors.Is(got.ScanError, wifi.ErrScanFailed) {
		t.Errorf("expected scan error to wrap ErrScanFailed, got %v", got.ScanError)
	}
}

func TestFromEnvironInvalid(t *testing.T) {
	_, err := FromEnviron(func(k string) string {
		if k == EnvCount {
			return "lots"
		}
		return ""
	})
	if err == nil {
		t.Fatal("expected error for invalid count")
	}
}
