package nbtscan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/iprange"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// reply builds a one-name NBSTAT answer with a workgroup entry and the given unit ID.
func reply(name, group string, mac []byte) []byte {
	data := make([]byte, nbstat.BaseLen+2*nbstat.NameBlockLen+nbstat.MACLen)
	copy(data, nbstat.Query[:])
	data[2] = 0x84
	data[nbstat.BaseLen-1] = 2
	pad := func(s string) []byte { return []byte(fmt.Sprintf("%-15s", s)) }
	first := data[nbstat.BaseLen:]
	copy(first, pad(name))
	first[16] = 0x04
	second := first[nbstat.NameBlockLen:]
	copy(second, pad(group))
	second[16] = 0x84
	copy(data[nbstat.BaseLen+2*nbstat.NameBlockLen:], mac)
	return data
}

// listenAt binds a responder to ip:port, answering each NBSTAT query with r.
func listenAt(t *testing.T, ip string, port int, r []byte) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", net.JoinHostPort(ip, fmt.Sprint(port)))
	if err != nil {
		t.Skipf("cannot listen on %s: %v", ip, err)
	}
	var wg sync.WaitGroup
	wg.Add(1)
	t.Cleanup(func() {
		conn.Close()
		wg.Wait()
	})
	go func() {
		defer wg.Done()
		buf := make([]byte, 2048)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if bytes.Equal(buf[:n], nbstat.Query[:]) {
				_, _ = conn.WriteTo(r, from)
			}
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func loopbackScanner(port int) *Scanner {
	s := NewScanner()
	s.Options.Workers = 4
	s.Options.Timeout = 300 * time.Millisecond
	s.Options.Port = port
	return s
}

func TestDefaultOptions(t *testing.T) {
	s := NewScanner()
	assert.Equal(t, DefaultWorkers, s.Options.Workers)
	assert.Equal(t, DefaultTimeout, s.Options.Timeout)
	assert.Equal(t, nbstat.Port, s.Options.Port)
	assert.False(t, s.Options.Verbose)
	assert.Nil(t, s.Options.Vendors)
	assert.Nil(t, s.Options.ARP)
}

func TestScan_ParseErrorSendsNothing(t *testing.T) {
	hosts, err := NewScanner().Scan(context.Background(), "10.0.0.1/8")
	assert.Nil(t, hosts)

	var perr *iprange.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "10.0.0.1/8", perr.Spec)
	assert.ErrorIs(t, err, iprange.ErrCIDRNumber)
}

func TestRun_NoAddresses(t *testing.T) {
	hosts, err := NewScanner().Run(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, hosts)
}

func TestScan_SortedAndSilentHostsSkipped(t *testing.T) {
	port := listenAt(t, "127.0.0.5", 0, reply("FIVE", "LAB", []byte{0, 0x50, 0x56, 0, 0, 5}))
	listenAt(t, "127.0.0.2", port, reply("TWO", "LAB", []byte{0, 0x50, 0x56, 0, 0, 2}))
	listenAt(t, "127.0.0.3", port, reply("THREE", "LAB", []byte{0, 0x50, 0x56, 0, 0, 3}))

	hosts, err := loopbackScanner(port).Scan(context.Background(), "127.0.0.1-6")
	require.NoError(t, err)
	require.Len(t, hosts, 3)

	wantIPs := []string{"127.0.0.2", "127.0.0.3", "127.0.0.5"}
	wantNames := []string{"TWO", "THREE", "FIVE"}
	for i, h := range hosts {
		assert.Equal(t, wantIPs[i], h.IP.String())
		assert.Equal(t, wantNames[i], h.Name)
		assert.Equal(t, "LAB", h.Group)
		assert.Equal(t, `LAB\`+wantNames[i], h.GroupAndName())
		assert.True(t, strings.HasPrefix(h.MAC, "00:50:56:00:00:0"), h.MAC)
		assert.Empty(t, h.Vendor)
		require.NotNil(t, h.Packet)
		assert.Equal(t, h.IP, h.Packet.Addr)
	}
}

func TestRun_CancelledContextSubmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	addrs, err := iprange.Parse("192.0.2.1-20")
	require.NoError(t, err)
	hosts, err := loopbackScanner(nbstat.Port).Run(ctx, addrs)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, hosts)
}

type fakeARP struct {
	mu    sync.Mutex
	asked []netip.Addr
	mac   string
	err   error
}

func (f *fakeARP) LookupMAC(ctx context.Context, addr netip.Addr) (string, error) {
	f.mu.Lock()
	f.asked = append(f.asked, addr)
	f.mu.Unlock()
	return f.mac, f.err
}

type fakeVendors map[string]string

func (f fakeVendors) Vendor(mac string) (string, error) {
	if v, ok := f[mac]; ok {
		return v, nil
	}
	return "", errors.New("unknown")
}

func TestRun_ARPFallbackForZeroMAC(t *testing.T) {
	port := listenAt(t, "127.0.0.1", 0, reply("SAMBA", "WORKGROUP", make([]byte, 6)))

	arp := &fakeARP{mac: "08:00:27:AA:BB:CC"}
	s := loopbackScanner(port)
	s.Options.ARP = arp
	s.Options.Vendors = fakeVendors{"08:00:27:AA:BB:CC": "PCS Systemtechnik GmbH"}

	hosts, err := s.Scan(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "08:00:27:AA:BB:CC", hosts[0].MAC)
	assert.Equal(t, "PCS Systemtechnik GmbH", hosts[0].Vendor)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("127.0.0.1")}, arp.asked)
}

func TestRun_ARPNotAskedForRealMAC(t *testing.T) {
	port := listenAt(t, "127.0.0.1", 0, reply("WIN", "CORP", []byte{0x00, 0x1A, 0x2B, 0x3C, 0x4D, 0x5E}))

	arp := &fakeARP{err: errors.New("should not be called")}
	s := loopbackScanner(port)
	s.Options.ARP = arp
	s.Options.Vendors = fakeVendors{}

	hosts, err := s.Scan(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "00:1A:2B:3C:4D:5E", hosts[0].MAC)
	assert.Empty(t, hosts[0].Vendor, "lookup failure leaves vendor empty")
	assert.Empty(t, arp.asked)
}

func TestRun_ARPFailureKeepsDecodedMAC(t *testing.T) {
	port := listenAt(t, "127.0.0.1", 0, reply("SAMBA", "WORKGROUP", make([]byte, 6)))

	s := loopbackScanner(port)
	s.Options.ARP = &fakeARP{err: errors.New("no reply")}

	hosts, err := s.Scan(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "00:00:00:00:00:00", hosts[0].MAC)
}

func TestScanError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ScanError{Component: ComponentPool, Err: inner})
	assert.Equal(t, "pool: boom", err.Error())
	assert.ErrorIs(t, err, inner)
}
