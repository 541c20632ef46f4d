// Package report renders scan results as fixed-width text columns.
package report

import (
	"fmt"
	"io"
	"net/netip"
	"strings"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
)

// Column widths.
const (
	IPWidth    = 16
	NameWidth  = 32
	MACWidth   = 18
	missingMAC = "-"
)

// Options controls what Write prints.
type Options struct {
	// Vendor adds a manufacturer column.
	Vendor bool
	// Names lists every name table entry below its host.
	Names bool
	// Dump prints the raw reply below its host.
	Dump bool
}

// Banner returns the line printed before a scan starts.
func Banner(addrs []netip.Addr) string {
	if len(addrs) == 0 {
		return "Nothing to scan (0 total)"
	}
	return fmt.Sprintf("Scanning from %s to %s (%d total)", addrs[0], addrs[len(addrs)-1], len(addrs))
}

// Header returns the column titles matching Row.
func Header(opts Options) string {
	line := fmt.Sprintf("%-*s%-*s%-*s", IPWidth, "IP address", NameWidth, `Workgroup\Name`, MACWidth, "MAC address")
	if opts.Vendor {
		line += "Vendor"
	}
	return trimRight(line)
}

// Row formats one host.
func Row(h nbtscan.Host, opts Options) string {
	mac := h.MAC
	if mac == "" {
		mac = missingMAC
	}
	line := fmt.Sprintf("%-*s%-*s%-*s", IPWidth, h.IP, NameWidth, h.GroupAndName(), MACWidth, mac)
	if opts.Vendor {
		line += h.Vendor
	}
	return trimRight(line)
}

// Write prints the header and one row per host, in the order given.
func Write(w io.Writer, hosts []nbtscan.Host, opts Options) error {
	if _, err := fmt.Fprintln(w, Header(opts)); err != nil {
		return err
	}
	for _, h := range hosts {
		if _, err := fmt.Fprintln(w, Row(h, opts)); err != nil {
			return err
		}
		if h.Packet == nil {
			continue
		}
		if opts.Names {
			if err := writeNames(w, h.Packet); err != nil {
				return err
			}
		}
		if opts.Dump {
			if _, err := fmt.Fprintln(w, h.Packet.Dump()); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeNames(w io.Writer, p *nbstat.Packet) error {
	for _, n := range p.Names() {
		if _, err := fmt.Fprintf(w, "%*s%s\n", IPWidth, "", n); err != nil {
			return err
		}
	}
	return nil
}

func trimRight(s string) string {
	return strings.TrimRight(s, " ")
}
