package comm

import (
	"fmt"
	"math"
	"slices"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

// Wildcards for the source and tag of receives.
const (
	AnySource = transport.AnySource
	AnyTag    = transport.AnyTag
)

// LengthTagOffset is added to the payload tag to form the tag of the length
// message of a two-phase transfer.
const LengthTagOffset = 1

// Send sends the first count elements of buf to dest and blocks until buf can
// be reused.
func Send[T datatype.Elem](c *Communicator, buf []T, count, dest, tag int) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := p2pOp(EventSend, dt, count, dest, tag)

	return c.invoke(op, func() error {
		return c.transport.Send(datatype.Bytes(buf), count, dt, dest, tag)
	})
}

// Recv blocks until count elements from source arrive in buf.
func Recv[T datatype.Elem](c *Communicator, buf []T, count, source, tag int) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := p2pOp(EventRecv, dt, count, source, tag)

	return c.invoke(op, func() error {
		return c.transport.Recv(datatype.Bytes(buf), count, dt, source, tag)
	})
}

// Isend starts sending count elements of buf to dest. buf must not be
// modified until the request is waited for.
func Isend[T datatype.Elem](c *Communicator, buf []T, count, dest, tag int) (*Request, error) {
	dt := datatype.Of[T]()
	op := p2pOp(EventIsend, dt, count, dest, tag)

	if c.single() {
		return nullRequest(op), nil
	}

	var handle transport.Request
	err := c.invoke(op, func() error {
		var err error
		handle, err = c.transport.Isend(datatype.Bytes(buf), count, dt, dest, tag)
		return err
	})
	if err != nil {
		return nil, err
	}

	return newRequest(op, handle), nil
}

// Irecv starts receiving count elements from source into buf. buf must not be
// read or modified until the request is waited for.
func Irecv[T datatype.Elem](c *Communicator, buf []T, count, source, tag int) (*Request, error) {
	dt := datatype.Of[T]()
	op := p2pOp(EventIrecv, dt, count, source, tag)

	if c.single() {
		return nullRequest(op), nil
	}

	var handle transport.Request
	err := c.invoke(op, func() error {
		var err error
		handle, err = c.transport.Irecv(datatype.Bytes(buf), count, dt, source, tag)
		return err
	})
	if err != nil {
		return nil, err
	}

	return newRequest(op, handle), nil
}

func lengthPrefix(n int) (int32, error) {
	if n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrLengthOverflow, n)
	}

	return int32(n), nil
}

// SendString sends s to dest: its length on tag+LengthTagOffset, then its
// bytes on tag.
func (c *Communicator) SendString(s string, dest, tag int) error {
	if c.single() {
		return nil
	}

	return SendSlice(c, []byte(s), dest, tag)
}

// RecvString receives a string sent with SendString. AnySource is not
// supported, since the payload must come from the sender of the length.
func (c *Communicator) RecvString(source, tag int) (string, error) {
	if c.single() {
		return "", nil
	}

	var buf []byte
	if err := RecvSlice(c, &buf, source, tag); err != nil {
		return "", err
	}

	return string(buf), nil
}

// SendSlice sends all of buf to dest with the two-phase protocol.
func SendSlice[T datatype.Elem](c *Communicator, buf []T, dest, tag int) error {
	if c.single() {
		return nil
	}

	n, err := lengthPrefix(len(buf))
	if err != nil {
		return err
	}

	if err := Send(c, []int32{n}, 1, dest, tag+LengthTagOffset); err != nil {
		return err
	}

	return Send(c, buf, len(buf), dest, tag)
}

// RecvSlice receives a slice sent with SendSlice. *buf is resized to exactly
// the announced length, reusing its capacity when possible.
func RecvSlice[T datatype.Elem](c *Communicator, buf *[]T, source, tag int) error {
	if c.single() {
		return nil
	}

	n := []int32{0}
	if err := Recv(c, n, 1, source, tag+LengthTagOffset); err != nil {
		return err
	}

	*buf = resize(*buf, int(n[0]))

	return Recv(c, *buf, int(n[0]), source, tag)
}

func resize[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}

	return slices.Grow(s[:0], n)[:n]
}
