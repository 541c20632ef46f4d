// Package nbstat holds the NetBIOS Node Status (NBSTAT) wire format used by the scanner:
// the fixed query datagram sent to UDP/137 and a decoder for the reply.
package nbstat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/miekg/dns"
)

const (
	// Port is the UDP port for NetBIOS Name Service
	Port = 137
	// ResponseSize is the largest reply the scanner reads.
	ResponseSize = 1024

	// BaseLen is the offset of the first name-table entry. The byte before it holds the
	// number of entries.
	BaseLen = 57
	// NameLen is the width of the name field inside a name-table entry.
	NameLen = 15
	// NameBlockLen is the width of one name-table entry (name, suffix, two flag bytes).
	NameBlockLen = 18
	// entryHeaderLen covers the suffix and flag bytes that end a name-table entry.
	entryHeaderLen = NameBlockLen - NameLen
	// MACLen is the width of the unit ID that follows the name table.
	MACLen = 6

	// NameFallback is reported when the name bytes are not printable text.
	NameFallback = "N/A"
	// GroupFallback is reported when the group bytes are not printable text.
	GroupFallback = "-"
)

// QueryTransactionID is the transaction id carried by Query.
const QueryTransactionID = 0xA248

// Query is the NBSTAT request for the wildcard name "*" (version 1 of the payload).
// It is sent verbatim to every host.
var Query = [50]byte{
	0xA2, 0x48, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20, 0x43, 0x4B, 0x41,
	0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41,
	0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x41, 0x00, 0x00, 0x21,
	0x00, 0x01,
}

// typeNBSTAT is the NBSTAT question type. It shares its value with SRV in DNS.
const typeNBSTAT = 0x0021

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from NBSTAT decoding.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// EncodeName returns the first-level encoding (RFC 1001 §14.1) of a NetBIOS name:
// the name is padded to 16 bytes and every nibble is added to 'A'.
func EncodeName(name string, suffix byte) string {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = ' '
	}
	if name == "*" {
		// The wildcard is NUL padded.
		for i := range raw {
			raw[i] = 0
		}
	}
	copy(raw[:15], strings.ToUpper(name))
	if name != "*" {
		raw[15] = suffix
	}

	var sb strings.Builder
	sb.Grow(32)
	for _, b := range raw {
		sb.WriteByte('A' + (b>>4)&0x0F)
		sb.WriteByte('A' + b&0x0F)
	}
	return sb.String()
}

// BuildQuery packs a wildcard NBSTAT question with the given transaction id.
// BuildQuery(QueryTransactionID) is byte-for-byte identical to Query.
func BuildQuery(id uint16) ([]byte, error) {
	msg := new(dns.Msg)
	msg.Id = id
	msg.Question = []dns.Question{{
		Name:   EncodeName("*", 0) + ".",
		Qtype:  typeNBSTAT,
		Qclass: dns.ClassINET,
	}}
	out, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("pack NBSTAT query: %w", err)
	}
	return out, nil
}

// ErrNotReply is returned by CheckReply for datagrams that do not answer Query.
var ErrNotReply = errors.New("not an NBSTAT reply to our query")

// CheckReply returns nil if data answers Query: same transaction id, the response bit set,
// the wildcard name echoed in the resource record and the NBSTAT record type.
func CheckReply(data []byte) error {
	const headerLen = 12
	if len(data) < headerLen {
		return fmt.Errorf("%w: %d bytes", ErrNotReply, len(data))
	}
	if id := binary.BigEndian.Uint16(data[0:2]); id != QueryTransactionID {
		return fmt.Errorf("%w: transaction id 0x%04X", ErrNotReply, id)
	}
	if data[2]&0x80 == 0 {
		return fmt.Errorf("%w: response bit not set", ErrNotReply)
	}
	name, off, err := dns.UnpackDomainName(data, headerLen)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReply, err)
	}
	if want := EncodeName("*", 0) + "."; name != want {
		return fmt.Errorf("%w: record name %q", ErrNotReply, name)
	}
	if off+2 > len(data) {
		return fmt.Errorf("%w: truncated after record name", ErrNotReply)
	}
	if rrtype := binary.BigEndian.Uint16(data[off : off+2]); rrtype != typeNBSTAT {
		return fmt.Errorf("%w: record type 0x%04X", ErrNotReply, rrtype)
	}
	return nil
}

// Packet is a raw NBSTAT reply received from one host.
// Name, Group and MACAddress are decoded on demand.
type Packet struct {
	Addr   netip.Addr
	Data   [ResponseSize]byte
	Length int
}

// NewPacket copies a received datagram into a Packet. Bytes beyond ResponseSize are dropped.
func NewPacket(addr netip.Addr, data []byte) *Packet {
	p := &Packet{Addr: addr}
	p.Length = copy(p.Data[:], data)
	return p
}

// Bytes returns the received portion of the buffer.
func (p *Packet) Bytes() []byte {
	return p.Data[:p.validLength()]
}

func (p *Packet) validLength() int {
	switch {
	case p.Length < 0:
		return 0
	case p.Length > ResponseSize:
		return ResponseSize
	}
	return p.Length
}

// TransactionID returns the id echoed by the responder.
func (p *Packet) TransactionID() uint16 {
	return binary.BigEndian.Uint16(p.Data[0:2])
}

// NameCount returns the number of name-table entries announced by the reply.
func (p *Packet) NameCount() int {
	return int(p.Data[BaseLen-1])
}

// Name returns the first name-table entry, trimmed. Non-text content yields NameFallback.
func (p *Packet) Name() string {
	name, ok := decodeText(p.Data[BaseLen : BaseLen+NameLen])
	if !ok {
		debugLog("%s: could not decode name", p.Addr)
		return NameFallback
	}
	return name
}

// Group returns bytes [75, 90) trimmed: the second entry's name, which NBSTAT responders
// conventionally fill with the workgroup or domain. Non-text content yields GroupFallback.
func (p *Packet) Group() string {
	// The window opens after the first entry's suffix and flag bytes. A printable node-type
	// flag (0x24, 0x44, 0x64) would otherwise fail the text check.
	off := BaseLen + NameLen + entryHeaderLen
	group, ok := decodeText(p.Data[off : BaseLen+NameBlockLen+NameLen])
	if !ok {
		debugLog("%s: could not decode group", p.Addr)
		return GroupFallback
	}
	return group
}

// GroupAndName returns "GROUP\NAME".
func (p *Packet) GroupAndName() string {
	return p.Group() + `\` + p.Name()
}

// macOffset returns where the unit ID starts.
func (p *Packet) macOffset() int {
	return BaseLen + NameBlockLen*p.NameCount()
}

// HasMAC reports whether the six MAC bytes lie inside the received datagram.
func (p *Packet) HasMAC() bool {
	return p.macOffset()+MACLen <= p.validLength()
}

// MACAddress returns the unit ID as uppercase, colon separated hex. It returns "" when the
// name count points past the received length.
func (p *Packet) MACAddress() string {
	if !p.HasMAC() {
		debugLog("%s: MAC offset %d beyond received length %d", p.Addr, p.macOffset(), p.Length)
		return ""
	}
	return FormatMAC(p.Data[p.macOffset() : p.macOffset()+MACLen])
}

// FormatMAC renders six bytes as AA:BB:CC:DD:EE:FF.
func FormatMAC(b []byte) string {
	const hexUpper = "0123456789ABCDEF"
	out := make([]byte, 0, 17)
	for i, c := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hexUpper[c>>4], hexUpper[c&0x0F])
	}
	return string(out)
}

// IsZeroMAC reports whether mac is empty or 00:00:00:00:00:00. Samba answers with a zero
// unit ID.
func IsZeroMAC(mac string) bool {
	return mac == "" || strings.Trim(mac, "0:-") == ""
}

// decodeText trims whitespace, NUL and control bytes at both ends and requires what is left
// to be valid, printable UTF-8.
func decodeText(b []byte) (string, bool) {
	if !utf8.Valid(b) {
		return "", false
	}
	s := strings.TrimFunc(string(b), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", false
		}
	}
	return s, true
}

// Name is one entry of the node status name table.
type Name struct {
	Name     string
	Suffix   byte
	IsGroup  bool
	IsActive bool
}

// Names walks the name table, stopping at the announced count or the received length.
func (p *Packet) Names() []Name {
	data := p.Bytes()
	var names []Name
	off := BaseLen
	for i := 0; i < p.NameCount() && off+NameBlockLen <= len(data); i++ {
		entry := data[off : off+NameBlockLen]
		flags := binary.BigEndian.Uint16(entry[16:18])
		name, ok := decodeText(entry[:NameLen])
		if !ok {
			name = NameFallback
		}
		names = append(names, Name{
			Name:     name,
			Suffix:   entry[15],
			IsGroup:  flags&0x8000 != 0,
			IsActive: flags&0x0400 != 0,
		})
		off += NameBlockLen
	}
	return names
}

// String renders one entry the way nmblookup does, e.g. "WKSTN<00> UNIQUE ACTIVE".
func (n Name) String() string {
	kind := "UNIQUE"
	if n.IsGroup {
		kind = "GROUP"
	}
	state := "INACTIVE"
	if n.IsActive {
		state = "ACTIVE"
	}
	return fmt.Sprintf("%s<%02X> %s %s", n.Name, n.Suffix, kind, state)
}

// Dump returns a hex dump of the received bytes, four per row.
func (p *Packet) Dump() string {
	var sb strings.Builder
	sb.WriteString("[\n")
	for i, b := range p.Bytes() {
		fmt.Fprintf(&sb, "\t0x%02X", b)
		if (i+1)%4 == 0 {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteString("\n]")
	return sb.String()
}
