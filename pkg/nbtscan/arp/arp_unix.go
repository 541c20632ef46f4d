//go:build linux || darwin || freebsd || netbsd || openbsd

package arp

import (
	"context"
	"net"
	"net/netip"
	"sync"

	"github.com/j-keck/arping"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
)

// arping keeps its timeout in a package variable that Ping reads without locking, so
// setting it and pinging happen under one lock. Lookups are serialised.
var arpingMu sync.Mutex

// LookupMAC sends an ARP request for addr and returns its hardware address in the same
// uppercase colon form the NBSTAT decoder uses.
func (r *Resolver) LookupMAC(ctx context.Context, addr netip.Addr) (string, error) {
	if err := checkAddr(addr); err != nil {
		return "", err
	}
	debugLog("Looking up ARP for %s", addr)

	type arpResponse struct {
		mac net.HardwareAddr
		err error
	}
	responseChan := make(chan arpResponse, 1)

	go func() {
		arpingMu.Lock()
		arping.SetTimeout(r.timeout())
		mac, _, err := arping.Ping(net.IP(addr.AsSlice()))
		arpingMu.Unlock()
		responseChan <- arpResponse{mac: mac, err: err}
	}()

	select {
	case <-ctx.Done():
		debugLog("%s: context cancelled", addr)
		return "", ctx.Err()
	case resp := <-responseChan:
		if resp.err != nil {
			debugLog("%s: error: %v", addr, resp.err)
			return "", resp.err
		}
		mac := nbstat.FormatMAC(resp.mac)
		debugLog("%s -> MAC: %s", addr, mac)
		return mac, nil
	}
}

// IsSupported returns true if ARP is supported on this platform.
func IsSupported() bool {
	return true
}
