package comm

import (
	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

// Bcast copies the root's *v into *v on every other rank.
func Bcast[T datatype.Elem](c *Communicator, v *T) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := collectiveOp(EventBcast, dt, 1, c.root)

	return c.invoke(op, func() error {
		return c.transport.Bcast(datatype.ValueBytes(v), 1, dt, c.root)
	})
}

// BcastSlice broadcasts the first count elements of the root's buf. Every rank
// must pass a buffer holding at least count elements.
func BcastSlice[T datatype.Elem](c *Communicator, buf []T, count int) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := collectiveOp(EventBcast, dt, count, c.root)

	return c.invoke(op, func() error {
		return c.transport.Bcast(datatype.Bytes(buf), count, dt, c.root)
	})
}

// BcastVector broadcasts the root's slice. The length goes first and non-root
// ranks resize *v to it before the elements arrive.
func BcastVector[T datatype.Elem](c *Communicator, v *[]T) error {
	if c.single() {
		return nil
	}

	var n int32
	if c.IsRoot() {
		var err error
		if n, err = lengthPrefix(len(*v)); err != nil {
			return err
		}
	}

	if err := Bcast(c, &n); err != nil {
		return err
	}

	if !c.IsRoot() {
		*v = resize(*v, int(n))
	}

	return BcastSlice(c, *v, int(n))
}

// BcastString broadcasts the root's string with the same two-phase pattern
// as BcastVector.
func (c *Communicator) BcastString(s *string) error {
	if c.single() {
		return nil
	}

	var buf []byte
	if c.IsRoot() {
		buf = []byte(*s)
	}

	if err := BcastVector(c, &buf); err != nil {
		return err
	}

	if !c.IsRoot() {
		*s = string(buf)
	}

	return nil
}

// AllreduceSum replaces *v on every rank with the sum of *v over all ranks.
func AllreduceSum[T datatype.Number](c *Communicator, v *T) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := collectiveOp(EventAllreduceSum, dt, 1, noRank)
	in := *v

	return c.invoke(op, func() error {
		return c.transport.Allreduce(
			datatype.ValueBytes(&in), datatype.ValueBytes(v), 1, dt, transport.OpSum)
	})
}

// IallreduceSum starts an AllreduceSum. *v holds the sum once the request is
// waited for and must not be touched before.
func IallreduceSum[T datatype.Number](c *Communicator, v *T) (*Request, error) {
	dt := datatype.Of[T]()
	op := collectiveOp(EventIallreduceSum, dt, 1, noRank)

	if c.single() {
		return nullRequest(op), nil
	}

	in := new(T)
	*in = *v

	var handle transport.Request
	err := c.invoke(op, func() error {
		var err error
		handle, err = c.transport.Iallreduce(
			datatype.ValueBytes(in), datatype.ValueBytes(v), 1, dt, transport.OpSum)
		return err
	})
	if err != nil {
		return nil, err
	}

	req := newRequest(op, handle)
	req.keep = in

	return req, nil
}

// Gather collects sendCount elements from every rank into the root's recv, in
// rank order. recvCount is the number of elements received from each rank.
// recv is not touched on other ranks.
func Gather[T datatype.Elem](
	c *Communicator,
	send []T, sendCount int,
	recv []T, recvCount int,
) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := collectiveOp(EventGather, dt, sendCount, c.root)

	return c.invoke(op, func() error {
		return c.transport.Gather(
			datatype.Bytes(send), sendCount,
			datatype.Bytes(recv), recvCount,
			dt, c.root)
	})
}

// Gatherv is Gather with a count and a displacement per rank. The root's
// counts and displacements must agree with what each rank sends.
func Gatherv[T datatype.Elem](
	c *Communicator,
	send []T, sendCount int,
	recv []T, recvCounts, displs []int,
) error {
	if c.single() {
		return nil
	}

	dt := datatype.Of[T]()
	op := collectiveOp(EventGatherv, dt, sendCount, c.root)

	return c.invoke(op, func() error {
		return c.transport.Gatherv(
			datatype.Bytes(send), sendCount,
			datatype.Bytes(recv), recvCounts, displs,
			dt, c.root)
	})
}
