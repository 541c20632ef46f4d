// Package probe sends one NBSTAT query to one host over UDP and waits for the reply.
// Works without elevated privileges.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
)

const (
	// DefaultTimeout is how long a probe waits for the reply.
	DefaultTimeout = 2 * time.Second
)

// ErrEmptyResponse is returned when the host answers with a zero-length datagram.
var ErrEmptyResponse = errors.New("empty response")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from probes.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Prober performs NBSTAT exchanges.
type Prober struct {
	// Timeout bounds the wait for the reply.
	Timeout time.Duration
	// Port is the destination port, nbstat.Port unless testing.
	Port int
	// Verbose reports every contact, reply and failure through DebugLogger.
	Verbose bool
}

// NewProber creates a Prober with defaults.
func NewProber() *Prober {
	return &Prober{Timeout: DefaultTimeout, Port: nbstat.Port}
}

// Probe sends nbstat.Query to addr from an ephemeral local port and returns the first
// datagram that passes nbstat.CheckReply before the timeout or the context deadline,
// whichever comes first.
func (p *Prober) Probe(ctx context.Context, addr netip.Addr) (*nbstat.Packet, error) {
	if !addr.Is4() {
		return nil, fmt.Errorf("invalid IPv4 address: %s", addr)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	port := p.Port
	if port <= 0 {
		port = nbstat.Port
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", net.JoinHostPort(addr.String(), strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("udp dial: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = conn.SetDeadline(deadline)

	if p.Verbose {
		debugLog("Contacting %s", addr)
	}
	if _, err := conn.Write(nbstat.Query[:]); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	buf := make([]byte, nbstat.ResponseSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if n == 0 {
			return nil, ErrEmptyResponse
		}
		// Anything that does not answer our query is dropped; keep waiting until the deadline.
		if err := nbstat.CheckReply(buf[:n]); err != nil {
			if p.Verbose {
				debugLog("Discarded %d bytes from %s: %v", n, addr, err)
			}
			continue
		}
		if p.Verbose {
			debugLog("Received response from %s (%d bytes)", addr, n)
		}
		return nbstat.NewPacket(addr, buf[:n]), nil
	}
}

// Job probes a single address. It satisfies pool.Job[*nbstat.Packet].
type Job struct {
	// Ctx is the scan's context. Run takes no arguments, so the job carries it.
	Ctx    context.Context
	Prober *Prober
	Addr   netip.Addr
}

// NewJob binds addr to prober.
func NewJob(ctx context.Context, prober *Prober, addr netip.Addr) *Job {
	return &Job{Ctx: ctx, Prober: prober, Addr: addr}
}

// Run performs the probe. Any failure yields ok=false; the error is only reported when the
// prober is verbose.
func (j *Job) Run() (*nbstat.Packet, bool) {
	ctx := j.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	pkt, err := j.Prober.Probe(ctx, j.Addr)
	if err != nil {
		if j.Prober.Verbose {
			debugLog("Encountered an error when contacting %s: %v", j.Addr, err)
		}
		return nil, false
	}
	return pkt, true
}
