package comm

import (
	"errors"
	"fmt"

	"github.com/tebeka/atexit"
)

// ErrInvalidRoot is returned when a root outside the group is requested.
var ErrInvalidRoot = errors.New("comm: root outside of the group")

// ErrClosed is returned by operations issued after Close.
var ErrClosed = errors.New("comm: communicator closed")

// ErrLengthOverflow is returned when a string or slice is too long for the
// int32 length prefix.
var ErrLengthOverflow = errors.New("comm: length does not fit the length prefix")

// TransportError reports a transport operation that did not succeed.
type TransportError struct {
	Rank       int
	Size       int
	Op         string
	Diagnostic string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("comm: rank %d/%d: %s: %s", e.Rank, e.Size, e.Op, e.Diagnostic)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// A FaultHandler decides what happens after a transport fault has been
// logged. If it returns, the operation returns the error to its caller.
type FaultHandler func(err *TransportError)

// FatalFaultHandler runs the registered exit handlers, which finalize owned
// transports, and terminates the process.
func FatalFaultHandler(err *TransportError) {
	atexit.Fatalf("%v", err)
}

// ReturnFaultHandler leaves the fault to the caller.
func ReturnFaultHandler(_ *TransportError) {}
