// Package arp recovers the hardware address of a host whose NBSTAT reply carried no usable
// unit ID. Samba servers and some embedded stacks answer with an all-zero MAC, and short
// replies omit it entirely; an ARP request on the local segment fills the gap.
// Note: raw ARP needs elevated privileges on most systems.
package arp

import (
	"errors"
	"net/netip"
	"time"
)

const (
	// DefaultTimeout bounds one ARP request.
	DefaultTimeout = 500 * time.Millisecond
)

// Errors
var (
	// ErrNotSupported is returned on platforms without raw ARP support.
	ErrNotSupported = errors.New("ARP lookup is not supported on this platform")
	// ErrNotIPv4 is returned for anything but a valid IPv4 address.
	ErrNotIPv4 = errors.New("ARP requires an IPv4 address")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ARP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Resolver performs ARP lookups.
type Resolver struct {
	Timeout time.Duration
}

// NewResolver creates a Resolver with defaults.
func NewResolver() *Resolver {
	return &Resolver{Timeout: DefaultTimeout}
}

func (r *Resolver) timeout() time.Duration {
	if r == nil || r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func checkAddr(addr netip.Addr) error {
	if !addr.Is4() {
		return ErrNotIPv4
	}
	return nil
}
