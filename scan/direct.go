package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shazow/wifiscan/wifi"
)

// Direct runs the Scan Provider in the calling goroutine.
type Direct struct {
	scanner wifi.Scanner

	mu    sync.Mutex
	iface string
}

func NewDirect(scanner wifi.Scanner) *Direct {
	return &Direct{scanner: scanner}
}

func (d *Direct) Method() Method { return MethodDirect }

func (d *Direct) Init(iface string) error {
	if err := wifi.ValidateInterface(iface); err != nil {
		return err
	}
	d.mu.Lock()
	d.iface = iface
	d.mu.Unlock()
	return nil
}

func (d *Direct) Execute(ctx context.Context, results []wifi.ScanRecord) (int, error) {
	if !d.mu.TryLock() {
		return 0, ErrBusy
	}
	defer d.mu.Unlock()
	if d.iface == "" {
		return 0, ErrNotInitialized
	}
	return scanInto(ctx, d.scanner, d.iface, results)
}

func (d *Direct) Cleanup() error {
	d.mu.Lock()
	d.iface = ""
	d.mu.Unlock()
	return nil
}

// scanInto calls the provider and copies at most len(results) records.
func scanInto(ctx context.Context, scanner wifi.Scanner, iface string, results []wifi.ScanRecord) (int, error) {
	records, err := scanner.Scan(ctx, iface, len(results))
	if err != nil {
		return 0, providerError(iface, err)
	}
	return copy(results, records), nil
}

func providerError(iface string, err error) error {
	if errors.Is(err, wifi.ErrScanFailed) {
		return err
	}
	return fmt.Errorf("scan %s: %w: %w", iface, wifi.ErrScanFailed, err)
}
