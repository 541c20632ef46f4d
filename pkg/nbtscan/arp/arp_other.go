//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package arp

import (
	"context"
	"net/netip"
)

// LookupMAC is not supported on this platform.
func (r *Resolver) LookupMAC(ctx context.Context, addr netip.Addr) (string, error) {
	if err := checkAddr(addr); err != nil {
		return "", err
	}
	return "", ErrNotSupported
}

// IsSupported returns false on platforms without raw ARP.
func IsSupported() bool {
	return false
}
