package nbtscan

import (
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/arp"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/nbstat"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/oui"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/pool"
	"github.com/marcuoli/go-nbtscan/pkg/nbtscan/probe"
)

// Route every subpackage logger through SetDebugLogger and SetDebugLevel.
func init() {
	probe.DebugLogger = func(format string, args ...interface{}) {
		debugLog(ComponentProbe, format, args...)
	}
	pool.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentPool, format, args...)
	}
	nbstat.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentDecode, format, args...)
	}
	arp.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentARP, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(ComponentVendor, format, args...)
	}
}
