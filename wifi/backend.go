package wifi

import (
	"context"
	"fmt"
	"strings"
)

const (
	// MaxScanResults is the default capacity of a scan result buffer.
	MaxScanResults = 256
	// MaxInterfaceName bounds interface identifiers, including the trailing NUL
	// the kernel reserves.
	MaxInterfaceName = 16
)

// SecurityType represents the security protocol of a network.
type SecurityType int

const (
	SecurityUnknown SecurityType = iota
	SecurityOpen
	SecurityWEP
	SecurityWPA
	SecurityWPA2
	SecurityWPA3
	// SecurityEncrypted is reported when a network is encrypted but the
	// protocol could not be determined.
	SecurityEncrypted
)

var securityNames = map[SecurityType]string{
	SecurityUnknown:   "",
	SecurityOpen:      "Open",
	SecurityWEP:       "WEP",
	SecurityWPA:       "WPA",
	SecurityWPA2:      "WPA2",
	SecurityWPA3:      "WPA3",
	SecurityEncrypted: "Encrypted",
}

func (s SecurityType) String() string {
	if name, ok := securityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SecurityType(%d)", int(s))
}

// ParseSecurity returns the SecurityType for its text form. Unrecognized text
// maps to SecurityUnknown.
func ParseSecurity(s string) SecurityType {
	for t, name := range securityNames {
		if name != "" && strings.EqualFold(name, s) {
			return t
		}
	}
	return SecurityUnknown
}

// Scanner is the Scan Provider: a blocking call that lists the networks
// visible from one interface.
type Scanner interface {
	// Scan returns at most max records. An empty result with a nil error means
	// no networks were found; failures wrap ErrScanFailed or another sentinel
	// from this package.
	//
	// Scan must return soon after ctx is done. Callers that time out cancel
	// ctx and move on without waiting, so a Scan that ignores ctx keeps its
	// goroutine alive until it returns.
	Scan(ctx context.Context, iface string, max int) ([]ScanRecord, error)
}

// ScannerFunc adapts a function to the Scanner interface.
type ScannerFunc func(ctx context.Context, iface string, max int) ([]ScanRecord, error)

func (f ScannerFunc) Scan(ctx context.Context, iface string, max int) ([]ScanRecord, error) {
	return f(ctx, iface, max)
}

// ValidateInterface checks that iface is usable as an interface identifier.
func ValidateInterface(iface string) error {
	if iface == "" {
		return fmt.Errorf("empty interface name: %w", ErrInvalidInterface)
	}
	if len(iface) >= MaxInterfaceName {
		return fmt.Errorf("interface name %q is longer than %d bytes: %w", iface, MaxInterfaceName-1, ErrInvalidInterface)
	}
	if strings.ContainsAny(iface, "/ \t\n\x00") {
		return fmt.Errorf("interface name %q has invalid characters: %w", iface, ErrInvalidInterface)
	}
	return nil
}
