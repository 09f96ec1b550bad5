package driver

import (
	"errors"
	"fmt"
)

// Acquisition error kinds
var (
	// ErrConnect means no port answered the probe within the attempt budget.
	ErrConnect = errors.New("no responding device found")

	// ErrReturn means the instrument stopped answering during acquisition.
	ErrReturn = errors.New("no response from device")
)

// TransportError reports a fault in the underlying port I/O, e.g. an unplugged device
type TransportError struct {
	Op   string // "reset", "write" or "read"
	Port string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("serial %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("serial %s on %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
