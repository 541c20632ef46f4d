// Package oui resolves the vendor of a NetBIOS unit ID (MAC address) using an IEEE OUI
// database file loaded through github.com/klauspost/oui.
package oui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/oui"
)

// ErrNoDatabase is returned when a Resolver was created without a database path.
var ErrNoDatabase = errors.New("no OUI database configured")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from OUI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Resolver looks up vendors in one OUI database file. The file is opened on first use and
// shared by concurrent callers.
type Resolver struct {
	path string

	once sync.Once
	db   oui.OuiDB
	err  error

	mu    sync.Mutex
	cache map[string]string
}

// NewResolver returns a Resolver for the database at path ("oui.txt" format).
func NewResolver(path string) *Resolver {
	return &Resolver{path: path, cache: make(map[string]string)}
}

// Check verifies that the database file exists without loading it.
func (r *Resolver) Check() error {
	if r.path == "" {
		return ErrNoDatabase
	}
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("OUI database file not found: %w", err)
	}
	return nil
}

func (r *Resolver) load() error {
	r.once.Do(func() {
		if err := r.Check(); err != nil {
			r.err = err
			return
		}
		debugLog("Loading OUI database from: %s", r.path)
		db, err := oui.OpenStaticFile(r.path)
		if err != nil {
			r.err = fmt.Errorf("failed to open OUI database: %w", err)
			return
		}
		r.db = db
	})
	return r.err
}

// Vendor returns the manufacturer registered for mac. Unknown prefixes yield "" and no
// error.
func (r *Resolver) Vendor(mac string) (string, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return "", fmt.Errorf("invalid MAC address format: %q", mac)
	}
	prefix := norm[:8]

	r.mu.Lock()
	if v, ok := r.cache[prefix]; ok {
		r.mu.Unlock()
		return v, nil
	}
	r.mu.Unlock()

	if err := r.load(); err != nil {
		return "", err
	}
	hw, err := net.ParseMAC(norm)
	if err != nil {
		return "", fmt.Errorf("failed to parse MAC address: %w", err)
	}

	vendor := ""
	entry, err := r.db.Query(hw.String())
	switch {
	case err == nil:
		vendor = entry.Manufacturer
		debugLog("%s -> %s", norm, vendor)
	case errors.Is(err, oui.ErrNotFound):
		debugLog("%s: vendor not found in database", norm)
	default:
		return "", fmt.Errorf("OUI lookup failed: %w", err)
	}

	r.mu.Lock()
	r.cache[prefix] = vendor
	r.mu.Unlock()
	return vendor, nil
}

// NormalizeMAC converts "00:11:22:33:44:55", "00-11-22-33-44-55", "0011.2233.4455" or
// "001122334455" to lowercase colon form. Returns "" if invalid.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.NewReplacer("-", "", ":", "", ".", "").Replace(mac)
	if len(mac) != 12 {
		return ""
	}
	for _, c := range mac {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return ""
		}
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		mac[0:2], mac[2:4], mac[4:6], mac[6:8], mac[8:10], mac[10:12])
}
