package inproc

import (
	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

// Send copies the message into the mailbox of dest and returns.
func (e *Endpoint) Send(buf []byte, count int, dt datatype.Datatype, dest, tag int) error {
	n, err := e.checkSend(buf, count, dt, dest, tag)
	if err != nil {
		return err
	}

	e.deliver(contextP2P, dest, tag, dt, buf[:n])

	return nil
}

// Isend behaves like Send and returns a request that is already complete.
func (e *Endpoint) Isend(
	buf []byte, count int, dt datatype.Datatype, dest, tag int,
) (transport.Request, error) {
	if err := e.Send(buf, count, dt, dest, tag); err != nil {
		return nil, err
	}

	return completedRequest(nil), nil
}

// Recv blocks until a matching message arrives and copies it into buf.
func (e *Endpoint) Recv(buf []byte, count int, dt datatype.Datatype, source, tag int) error {
	req, err := e.Irecv(buf, count, dt, source, tag)
	if err != nil {
		return err
	}

	return e.Wait(req)
}

// Irecv posts a receive. Receives are matched in the order they are posted.
func (e *Endpoint) Irecv(
	buf []byte, count int, dt datatype.Datatype, source, tag int,
) (transport.Request, error) {
	if err := e.mustBeInitialized(); err != nil {
		return nil, err
	}

	n, err := checkBuffer(buf, count, dt)
	if err != nil {
		return nil, err
	}

	if err := e.checkPeer(source, true); err != nil {
		return nil, err
	}

	if err := checkTag(tag, true); err != nil {
		return nil, err
	}

	return e.post(contextP2P, source, tag, buf[:n]), nil
}

// Wait blocks until the request completes.
func (e *Endpoint) Wait(req transport.Request) error {
	r, err := asRequest(req)
	if err != nil {
		return err
	}

	return r.wait()
}

// Waitall blocks until every request completes. It returns the first error
// in request order.
func (e *Endpoint) Waitall(reqs []transport.Request) error {
	var firstErr error

	for _, req := range reqs {
		err := e.Wait(req)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (e *Endpoint) checkSend(
	buf []byte, count int, dt datatype.Datatype, dest, tag int,
) (int, error) {
	if err := e.mustBeInitialized(); err != nil {
		return 0, err
	}

	n, err := checkBuffer(buf, count, dt)
	if err != nil {
		return 0, err
	}

	if err := e.checkPeer(dest, false); err != nil {
		return 0, err
	}

	if err := checkTag(tag, false); err != nil {
		return 0, err
	}

	return n, nil
}

func (e *Endpoint) deliver(context, dest, tag int, dt datatype.Datatype, data []byte) {
	payload := make([]byte, len(data))
	copy(payload, data)

	e.world.boxes[dest].put(&envelope{
		context: context,
		source:  e.rank,
		tag:     tag,
		dt:      dt,
		payload: payload,
	})
}

func (e *Endpoint) post(context, source, tag int, buf []byte) *request {
	req := newRequest()

	e.world.boxes[e.rank].post(&pendingRecv{
		context: context,
		source:  source,
		tag:     tag,
		req:     req,
		deliver: func(env *envelope) error {
			copy(buf, env.payload)

			if len(env.payload) > len(buf) {
				return transport.Errorf(transport.ErrTruncate,
					"%d bytes from rank %d tag %d into a %d byte buffer",
					len(env.payload), env.source, env.tag, len(buf))
			}

			return nil
		},
	})

	return req
}
