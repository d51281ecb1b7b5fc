package internal

import "fmt"

// LedgerError represents errors reading or writing per-image ledger files
type LedgerError struct {
	Path string
	Op   string // "read", "write", "mkdir", "rename"
	Err  error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// BackendError represents a failed generation call to the inference backend
type BackendError struct {
	Mode string // "blocking" or "streaming"
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error [%s]: %v", e.Mode, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ForwardError represents a failed delivery to the remote collector
type ForwardError struct {
	URL    string
	Status int // -1 when the request never reached the server
	Err    error
}

func (e *ForwardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("forward error %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("forward error %s: status %d", e.URL, e.Status)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}
