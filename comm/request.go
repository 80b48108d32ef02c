package comm

import (
	"github.com/rs/xid"

	"github.com/sarchlab/typedcomm/transport"
)

// A Request is the token of a non-blocking operation. It must be passed to
// Wait or Waitall before the buffer of the operation is reused.
type Request struct {
	id     string
	op     Op
	handle transport.Request

	// keep holds memory the transport reads until completion.
	keep any
}

func newRequest(op Op, handle transport.Request) *Request {
	return &Request{
		id:     xid.New().String(),
		op:     op,
		handle: handle,
	}
}

// nullRequest is already complete. Single-rank groups hand these out.
func nullRequest(op Op) *Request {
	return &Request{id: xid.New().String(), op: op}
}

// ID returns the unique ID of the request.
func (r *Request) ID() string {
	return r.id
}

// Op returns the operation that created the request.
func (r *Request) Op() Op {
	return r.op
}

// Test reports whether the operation has completed, without blocking. A
// completed request must still be waited for.
func (r *Request) Test() bool {
	if r == nil || r.handle == nil {
		return true
	}

	return r.handle.Completed()
}

func (r *Request) release() {
	r.handle = nil
	r.keep = nil
}

// Wait blocks until req completes. Waiting for a nil or already waited
// request returns immediately.
func (c *Communicator) Wait(req *Request) error {
	if c.single() || req == nil || req.handle == nil {
		return nil
	}

	err := c.invoke(syncOp(EventWait), func() error {
		return c.transport.Wait(req.handle)
	})

	req.release()

	return err
}

// Waitall blocks until all reqs complete. Completion order among them is not
// defined.
func (c *Communicator) Waitall(reqs ...*Request) error {
	if c.single() {
		return nil
	}

	handles := make([]transport.Request, 0, len(reqs))
	for _, r := range reqs {
		if r != nil && r.handle != nil {
			handles = append(handles, r.handle)
		}
	}

	err := c.invoke(syncOp(EventWaitall), func() error {
		return c.transport.Waitall(handles)
	})

	for _, r := range reqs {
		if r != nil {
			r.release()
		}
	}

	return err
}

// Barrier blocks until every rank has entered it.
func (c *Communicator) Barrier() error {
	if c.single() {
		return nil
	}

	return c.invoke(syncOp(EventBarrier), func() error {
		return c.transport.Barrier()
	})
}
