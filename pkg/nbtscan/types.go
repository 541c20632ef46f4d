// Package nbtscan discovers NetBIOS hosts on an IPv4 range. It expands a compact range
// specification, sends one NBSTAT node status query per address through a bounded worker
// pool and returns the hosts that answered, ordered by address.
//
// Subpackages:
//   - iprange: "A.B.C.D", "A.B.C.D-E" and "A.B.C.D/N" expansion
//   - nbstat: the query literal and the reply decoder
//   - probe: one UDP exchange per host
//   - pool: the worker pool with per-worker terminate messages
//   - oui, arp: optional vendor lookup and MAC fallback
package nbtscan

import (
	"net/netip"
	"time"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
)

// Component identifies the part of the scanner that produced a log line or an error.
type Component string

const (
	ComponentScan   Component = "scan"
	ComponentPool   Component = "pool"
	ComponentProbe  Component = "probe"
	ComponentDecode Component = "nbstat"
	ComponentARP    Component = "arp"    // MAC fallback for zero unit IDs
	ComponentVendor Component = "vendor" // MAC vendor lookup (OUI)
)

// Host is one host that answered the node status query.
type Host struct {
	IP     netip.Addr
	Name   string
	Group  string
	MAC    string
	Vendor string

	// Packet is the reply the fields were decoded from.
	Packet *nbstat.Packet
}

// GroupAndName returns "GROUP\NAME".
func (h Host) GroupAndName() string {
	return h.Group + `\` + h.Name
}

// DefaultTimeout is used when no timeout is specified.
const DefaultTimeout = 2 * time.Second

// DefaultWorkers is the default concurrency level.
const DefaultWorkers = 100
