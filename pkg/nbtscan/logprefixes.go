// Package nbtscan: Log prefix constants for consistent log tagging.
// Consumers may use them in their SetDebugLogger callback or pick their own.
package nbtscan

// Format follows [Component] or [Component:Subcomponent].
const (
	LogPrefixScan   = "[Scan]"
	LogPrefixPool   = "[Scan:Pool]"
	LogPrefixProbe  = "[Scan:Probe]"
	LogPrefixDecode = "[Scan:NBSTAT]"
	LogPrefixARP    = "[Scan:ARP]"
	LogPrefixVendor = "[Scan:OUI]"

	// Debug prefix - use as "[DEBUG][Scan:*]" format
	LogPrefixDebug = "[DEBUG]"
)

// ComponentToPrefix returns the log prefix for a component.
func ComponentToPrefix(component Component) string {
	switch component {
	case ComponentPool:
		return LogPrefixPool
	case ComponentProbe:
		return LogPrefixProbe
	case ComponentDecode:
		return LogPrefixDecode
	case ComponentARP:
		return LogPrefixARP
	case ComponentVendor:
		return LogPrefixVendor
	default:
		return LogPrefixScan
	}
}
