// Package iprange expands an IPv4 address specification into the ordered list of hosts to scan.
//
// Three notations are accepted:
//   - single address: 192.168.1.10
//   - dash range on the last octet: 192.168.1.10-20
//   - CIDR block: 192.168.1.0/24 (network and broadcast addresses excluded)
package iprange

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go4.org/netipx"
)

const (
	// MinMask is the shortest accepted CIDR prefix. A /15 already expands to MaxHosts addresses.
	MinMask = 15
	// MaxMask is the longest accepted CIDR prefix. Longer prefixes leave at most one host.
	MaxMask = 29
	// MaxHosts is the size of the largest range Parse can return.
	MaxHosts = 1<<(32-MinMask) - 2
)

// Errors
var (
	// ErrBaseIP is returned when the base address is not a well-formed IPv4 literal.
	ErrBaseIP = errors.New("the base IP provided was not a valid IP address")
	// ErrCIDRNumber is returned when the CIDR prefix length is not within [MinMask, MaxMask].
	ErrCIDRNumber = errors.New("the provided CIDR number must be between 15 and 29")
	// ErrIPRange is returned when an octet parses as a number but does not fit in a byte.
	ErrIPRange = errors.New("octet value out of range 0-255")
)

// ParseError records the specification that failed to parse.
type ParseError struct {
	Spec string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid address specification %q: %v", e.Spec, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse expands spec into an ascending list of IPv4 host addresses.
// A dash range whose end is below its start yields an empty list and no error.
func Parse(spec string) ([]netip.Addr, error) {
	r, err := parseRange(spec)
	if err != nil {
		return nil, err
	}
	if !r.IsValid() {
		return []netip.Addr{}, nil
	}

	out := make([]netip.Addr, 0, size(r))
	for a := r.From(); a.IsValid() && a.Compare(r.To()) <= 0; a = a.Next() {
		out = append(out, a)
	}
	return out, nil
}

// parseRange returns the inclusive host range described by spec. The zero IPRange stands for
// an empty range.
func parseRange(spec string) (netipx.IPRange, error) {
	s := strings.TrimSpace(spec)
	fail := func(err error) (netipx.IPRange, error) {
		return netipx.IPRange{}, &ParseError{Spec: spec, Err: err}
	}

	if idx := strings.Index(s, "-"); idx >= 0 {
		base, err := parseBase(s[:idx])
		if err != nil {
			return fail(err)
		}
		end, err := parseEndOctet(s[idx+1:])
		if err != nil {
			return fail(err)
		}
		return dashRange(base, end), nil
	}

	if idx := strings.Index(s, "/"); idx >= 0 {
		base, err := parseBase(s[:idx])
		if err != nil {
			return fail(err)
		}
		mask, err := parseMask(s[idx+1:])
		if err != nil {
			return fail(err)
		}
		return cidrRange(base, mask), nil
	}

	base, err := parseBase(s)
	if err != nil {
		return fail(err)
	}
	return netipx.IPRangeFrom(base, base), nil
}

// parseBase parses a dotted-quad IPv4 literal. Numeric octets above 255 are reported as
// ErrIPRange in addition to ErrBaseIP.
func parseBase(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	addr, err := netip.ParseAddr(s)
	if err == nil && addr.Is4() {
		return addr, nil
	}

	parts := strings.Split(s, ".")
	if len(parts) == 4 {
		for _, p := range parts {
			v, convErr := strconv.Atoi(p)
			if convErr == nil && (v < 0 || v > 255) {
				return netip.Addr{}, fmt.Errorf("%w: octet %d: %w", ErrBaseIP, v, ErrIPRange)
			}
		}
	}
	return netip.Addr{}, ErrBaseIP
}

func parseEndOctet(s string) (uint8, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: ending octet %q is not a number", ErrBaseIP, s)
	}
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%w: ending octet %d", ErrIPRange, v)
	}
	return uint8(v), nil
}

func parseMask(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrCIDRNumber, s)
	}
	if v < MinMask || v > MaxMask {
		return 0, fmt.Errorf("%w: got /%d", ErrCIDRNumber, v)
	}
	return v, nil
}

// dashRange holds the first three octets of base and runs the last one up to end.
func dashRange(base netip.Addr, end uint8) netipx.IPRange {
	octets := base.As4()
	if end < octets[3] {
		return netipx.IPRange{}
	}
	octets[3] = end
	return netipx.IPRangeFrom(base, netip.AddrFrom4(octets))
}

// cidrRange returns the block containing base, without its network and broadcast addresses.
func cidrRange(base netip.Addr, mask int) netipx.IPRange {
	block := netipx.RangeOfPrefix(netip.PrefixFrom(base, mask).Masked())
	return netipx.IPRangeFrom(block.From().Next(), block.To().Prev())
}

func size(r netipx.IPRange) int {
	if !r.IsValid() {
		return 0
	}
	return int(toUint32(r.To())-toUint32(r.From())) + 1
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}
