package nbtscan

// ScanError represents an error that aborted a scan.
type ScanError struct {
	Component Component
	Err       error
}

func (e *ScanError) Error() string {
	return string(e.Component) + ": " + e.Err.Error()
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
