package bus

import (
	"errors"
	"fmt"
)

// Bus errors.
var (
	// ErrProtocol is wrapped by every ProtocolError.
	ErrProtocol = errors.New("bus protocol violation")
	// ErrSelectConflict means two or more select lines were low together.
	ErrSelectConflict = errors.New("more than one device selected")
	// ErrNoTransaction means a data call was made outside a transaction.
	ErrNoTransaction = errors.New("no transaction in data phase")
	// ErrUnsupported means the protocol cannot express the request.
	ErrUnsupported = errors.New("unsupported transaction")
)

// ProtocolError describes one pin that did not have its expected value.
type ProtocolError struct {
	Device Device
	Phase  Phase
	Edge   int
	Signal string
	Want   uint32
	Got    uint32
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s on %s, %s phase edge %d: %s = %#x, want %#x",
		ErrProtocol, e.Device, e.Phase, e.Edge, e.Signal, e.Got, e.Want)
}

// Unwrap returns ErrProtocol.
func (e *ProtocolError) Unwrap() error {
	return ErrProtocol
}

// ErrBusy means a transaction was started while another was active.
var ErrBusy = errors.New("transaction already active")
