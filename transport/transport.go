// Package transport defines the capability interface that a message-passing
// substrate offers to a communicator.
//
// Buffers cross this interface as byte views together with an element count
// and a datatype, the same way a C transport receives a pointer, a count and a
// datatype handle. A transport must not retain a buffer after the operation
// that received it completes.
package transport

import "github.com/sarchlab/typedcomm/datatype"

// Wildcards accepted as the source and tag of receives.
const (
	AnySource = -1
	AnyTag    = -1
)

// Op is a reduction operator.
type Op int

// The supported reduction operators.
const (
	OpSum Op = iota
)

func (o Op) String() string {
	if o == OpSum {
		return "sum"
	}

	return "unknown"
}

// A Request represents an operation that is still in flight.
type Request interface {
	// Completed reports whether the operation has finished without blocking.
	Completed() bool
}

// Transport is a process group that can move typed buffers between its
// members.
type Transport interface {
	// Init joins the process group. It must be called exactly once.
	Init(args []string) error

	// Finalize leaves the process group. No operation may follow it.
	Finalize() error

	// Initialized reports whether Init succeeded and Finalize has not been
	// called yet.
	Initialized() bool

	Rank() int
	Size() int

	Send(buf []byte, count int, dt datatype.Datatype, dest, tag int) error
	Recv(buf []byte, count int, dt datatype.Datatype, source, tag int) error
	Isend(buf []byte, count int, dt datatype.Datatype, dest, tag int) (Request, error)
	Irecv(buf []byte, count int, dt datatype.Datatype, source, tag int) (Request, error)

	Bcast(buf []byte, count int, dt datatype.Datatype, root int) error

	// Allreduce reduces send over all members and writes the result to
	// recv. The two buffers must not overlap.
	Allreduce(send, recv []byte, count int, dt datatype.Datatype, op Op) error
	Iallreduce(send, recv []byte, count int, dt datatype.Datatype, op Op) (Request, error)

	Gather(
		send []byte, sendCount int,
		recv []byte, recvCount int,
		dt datatype.Datatype, root int,
	) error
	Gatherv(
		send []byte, sendCount int,
		recv []byte, recvCounts, displs []int,
		dt datatype.Datatype, root int,
	) error

	Wait(req Request) error
	Waitall(reqs []Request) error
	Barrier() error

	// Wtime returns the transport's clock in seconds.
	Wtime() float64

	// ErrorString describes an error returned by this transport.
	ErrorString(err error) string
}
