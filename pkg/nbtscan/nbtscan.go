package nbtscan

import (
	"context"
	"net/netip"
	"slices"
	"time"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/iprange"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/pool"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/probe"
)

// VendorResolver maps a MAC address to its manufacturer. *oui.Resolver satisfies it.
type VendorResolver interface {
	Vendor(mac string) (string, error)
}

// MACResolver finds the hardware address of a host. *arp.Resolver satisfies it.
type MACResolver interface {
	LookupMAC(ctx context.Context, addr netip.Addr) (string, error)
}

// Options configures a scan.
type Options struct {
	// Workers is the number of concurrent probes.
	Workers int
	// Timeout bounds the wait for each host's reply.
	Timeout time.Duration
	// Port is the destination UDP port, 137 unless testing.
	Port int
	// Verbose reports every contact, reply and per-host failure.
	Verbose bool

	// Vendors, if set, fills Host.Vendor from the MAC address.
	Vendors VendorResolver
	// ARP, if set, replaces missing or all-zero MACs.
	ARP MACResolver
}

// DefaultOptions returns options for a plain NBSTAT sweep.
func DefaultOptions() Options {
	return Options{
		Workers: DefaultWorkers,
		Timeout: DefaultTimeout,
		Port:    nbstat.Port,
	}
}

// Scanner runs NBSTAT sweeps.
type Scanner struct {
	Options Options
}

// NewScanner creates a Scanner with defaults.
func NewScanner() *Scanner {
	return &Scanner{Options: DefaultOptions()}
}

// Scan expands spec and scans the resulting addresses. Range errors are returned as
// *iprange.ParseError before any packet is sent.
func (s *Scanner) Scan(ctx context.Context, spec string) ([]Host, error) {
	addrs, err := iprange.Parse(spec)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, addrs)
}

// Run probes every address through a worker pool and returns the hosts that answered,
// ascending by address. Hosts that stay silent are left out. If ctx ends early, the hosts
// found so far are returned together with ctx.Err().
func (s *Scanner) Run(ctx context.Context, addrs []netip.Addr) ([]Host, error) {
	if len(addrs) == 0 {
		return nil, nil
	}
	opts := s.Options
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}

	p, err := pool.New[*nbstat.Packet](opts.Workers, pool.WithName("scan"))
	if err != nil {
		return nil, &ScanError{Component: ComponentPool, Err: err}
	}
	prober := &probe.Prober{Timeout: opts.Timeout, Port: opts.Port, Verbose: opts.Verbose}

	debugLog(ComponentScan, "Scanning %d addresses with %d workers", len(addrs), opts.Workers)
	start := time.Now()
	submitted := 0
	for _, addr := range addrs {
		if ctx.Err() != nil {
			debugLog(ComponentScan, "Context done after %d of %d submissions", submitted, len(addrs))
			break
		}
		if err := p.Submit(probe.NewJob(ctx, prober, addr)); err != nil {
			p.JoinAll()
			return nil, &ScanError{Component: ComponentPool, Err: err}
		}
		submitted++
	}
	p.Stop()
	packets := p.JoinAll()

	slices.SortFunc(packets, func(a, b *nbstat.Packet) int {
		return a.Addr.Compare(b.Addr)
	})
	hosts := make([]Host, 0, len(packets))
	for _, pkt := range packets {
		hosts = append(hosts, hostFromPacket(pkt))
	}
	debugLog(ComponentScan, "%d of %d hosts answered in %v", len(hosts), submitted, time.Since(start))

	if opts.ARP != nil {
		s.fillMissingMACs(ctx, hosts, opts)
	}
	if opts.Vendors != nil {
		fillVendors(hosts, opts.Vendors)
	}
	return hosts, ctx.Err()
}

func hostFromPacket(pkt *nbstat.Packet) Host {
	return Host{
		IP:     pkt.Addr,
		Name:   pkt.Name(),
		Group:  pkt.Group(),
		MAC:    pkt.MACAddress(),
		Packet: pkt,
	}
}

type macFix struct {
	index int
	mac   string
}

// fillMissingMACs asks ARP for every host whose reply had no usable unit ID. The lookups
// share a pool of the same size as the scan.
func (s *Scanner) fillMissingMACs(ctx context.Context, hosts []Host, opts Options) {
	var todo []int
	for i := range hosts {
		if nbstat.IsZeroMAC(hosts[i].MAC) {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return
	}
	p, err := pool.New[macFix](min(opts.Workers, len(todo)), pool.WithName("arp"))
	if err != nil {
		debugLog(ComponentARP, "ARP fallback skipped: %v", err)
		return
	}
	for _, idx := range todo {
		host := hosts[idx]
		_ = p.Submit(pool.JobFunc[macFix](func() (macFix, bool) {
			mac, err := opts.ARP.LookupMAC(ctx, host.IP)
			if err != nil || nbstat.IsZeroMAC(mac) {
				debugLog(ComponentARP, "%s: no MAC via ARP: %v", host.IP, err)
				return macFix{}, false
			}
			return macFix{index: idx, mac: mac}, true
		}))
	}
	for _, fix := range p.JoinAll() {
		hosts[fix.index].MAC = fix.mac
	}
}

func fillVendors(hosts []Host, vendors VendorResolver) {
	for i := range hosts {
		if nbstat.IsZeroMAC(hosts[i].MAC) {
			continue
		}
		vendor, err := vendors.Vendor(hosts[i].MAC)
		if err != nil {
			debugLog(ComponentVendor, "%s: vendor lookup failed: %v", hosts[i].IP, err)
			continue
		}
		hosts[i].Vendor = vendor
	}
}
