package inproc

import (
	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

// reduceRank is where Allreduce combines contributions.
const reduceRank = 0

// Bcast copies buf from root to every other rank.
func (e *Endpoint) Bcast(buf []byte, count int, dt datatype.Datatype, root int) error {
	n, err := e.checkCollective(buf, count, dt, root)
	if err != nil {
		return err
	}

	id := e.nextCollectiveID()

	if e.rank == root {
		for r := 0; r < e.Size(); r++ {
			if r != root {
				e.deliver(contextCollective, r, id, dt, buf[:n])
			}
		}

		return nil
	}

	return e.post(contextCollective, root, id, buf[:n]).wait()
}

// Allreduce combines send over all ranks and writes the result into recv on
// every rank.
func (e *Endpoint) Allreduce(
	send, recv []byte, count int, dt datatype.Datatype, op transport.Op,
) error {
	n, err := e.checkReduce(send, recv, count, dt, op)
	if err != nil {
		return err
	}

	return e.allreduce(e.nextCollectiveID(), send[:n], recv[:n], dt)
}

// Iallreduce starts an Allreduce. The collective is ordered with the others
// at the time of this call, not when it completes.
func (e *Endpoint) Iallreduce(
	send, recv []byte, count int, dt datatype.Datatype, op transport.Op,
) (transport.Request, error) {
	n, err := e.checkReduce(send, recv, count, dt, op)
	if err != nil {
		return nil, err
	}

	id := e.nextCollectiveID()
	req := newRequest()

	go func() {
		req.complete(e.allreduce(id, send[:n], recv[:n], dt))
	}()

	return req, nil
}

func (e *Endpoint) allreduce(id int, send, recv []byte, dt datatype.Datatype) error {
	if e.rank != reduceRank {
		e.deliver(contextCollective, reduceRank, id, dt, send)
		return e.post(contextCollective, reduceRank, id, recv).wait()
	}

	acc := make([]byte, len(send))
	copy(acc, send)

	part := make([]byte, len(send))
	for r := 0; r < e.Size(); r++ {
		if r == reduceRank {
			continue
		}

		if err := e.post(contextCollective, r, id, part).wait(); err != nil {
			return err
		}

		if err := sum(dt, acc, part); err != nil {
			return err
		}
	}

	for r := 0; r < e.Size(); r++ {
		if r != reduceRank {
			e.deliver(contextCollective, r, id, dt, acc)
		}
	}

	copy(recv, acc)

	return nil
}

// Gather concatenates recvCount elements from every rank, in rank order, into
// the recv buffer of root. Only root reads recv.
func (e *Endpoint) Gather(
	send []byte, sendCount int,
	recv []byte, recvCount int,
	dt datatype.Datatype, root int,
) error {
	n, err := e.checkCollective(send, sendCount, dt, root)
	if err != nil {
		return err
	}

	if e.rank == root {
		if _, err := checkBuffer(recv, recvCount*e.Size(), dt); err != nil {
			return err
		}
	}

	counts := make([]int, e.Size())
	displs := make([]int, e.Size())

	for r := range counts {
		counts[r] = recvCount
		displs[r] = r * recvCount
	}

	return e.gather(e.nextCollectiveID(), send[:n], recv, counts, displs, dt, root)
}

// Gatherv places recvCounts[r] elements from rank r at element offset
// displs[r] of the recv buffer of root.
func (e *Endpoint) Gatherv(
	send []byte, sendCount int,
	recv []byte, recvCounts, displs []int,
	dt datatype.Datatype, root int,
) error {
	n, err := e.checkCollective(send, sendCount, dt, root)
	if err != nil {
		return err
	}

	if e.rank == root {
		if err := e.checkLayout(recv, recvCounts, displs, dt); err != nil {
			return err
		}
	}

	return e.gather(e.nextCollectiveID(), send[:n], recv, recvCounts, displs, dt, root)
}

func (e *Endpoint) gather(
	id int,
	send, recv []byte,
	counts, displs []int,
	dt datatype.Datatype, root int,
) error {
	if e.rank != root {
		e.deliver(contextCollective, root, id, dt, send)
		return nil
	}

	size := dt.Size()
	slot := func(r int) []byte {
		start := displs[r] * size
		return recv[start : start+counts[r]*size]
	}

	own := slot(root)
	copy(own, send)

	if len(send) > len(own) {
		return transport.Errorf(transport.ErrTruncate,
			"%d bytes from root into a %d byte slot", len(send), len(own))
	}

	for r := 0; r < e.Size(); r++ {
		if r == root {
			continue
		}

		if err := e.post(contextCollective, r, id, slot(r)).wait(); err != nil {
			return err
		}
	}

	return nil
}

// Barrier returns once every rank has entered it.
func (e *Endpoint) Barrier() error {
	if err := e.mustBeInitialized(); err != nil {
		return err
	}

	id := e.nextCollectiveID()

	if e.rank != reduceRank {
		e.deliver(contextCollective, reduceRank, id, datatype.Byte, nil)
		return e.post(contextCollective, reduceRank, id, nil).wait()
	}

	for r := 0; r < e.Size(); r++ {
		if r == reduceRank {
			continue
		}

		if err := e.post(contextCollective, r, id, nil).wait(); err != nil {
			return err
		}
	}

	for r := 0; r < e.Size(); r++ {
		if r != reduceRank {
			e.deliver(contextCollective, r, id, datatype.Byte, nil)
		}
	}

	return nil
}

func (e *Endpoint) checkCollective(
	buf []byte, count int, dt datatype.Datatype, root int,
) (int, error) {
	if err := e.mustBeInitialized(); err != nil {
		return 0, err
	}

	if err := e.checkRoot(root); err != nil {
		return 0, err
	}

	return checkBuffer(buf, count, dt)
}

func (e *Endpoint) checkReduce(
	send, recv []byte, count int, dt datatype.Datatype, op transport.Op,
) (int, error) {
	if err := e.mustBeInitialized(); err != nil {
		return 0, err
	}

	if op != transport.OpSum {
		return 0, transport.Errorf(transport.ErrOp, "%s", op)
	}

	n, err := checkBuffer(send, count, dt)
	if err != nil {
		return 0, err
	}

	if _, err := checkBuffer(recv, count, dt); err != nil {
		return 0, err
	}

	return n, nil
}

func (e *Endpoint) checkLayout(
	recv []byte, counts, displs []int, dt datatype.Datatype,
) error {
	if len(counts) != e.Size() || len(displs) != e.Size() {
		return transport.Errorf(transport.ErrCount,
			"%d counts and %d displacements for %d ranks",
			len(counts), len(displs), e.Size())
	}

	for r := range counts {
		if counts[r] < 0 || displs[r] < 0 {
			return transport.Errorf(transport.ErrCount,
				"rank %d has count %d at displacement %d", r, counts[r], displs[r])
		}

		if (displs[r]+counts[r])*dt.Size() > len(recv) {
			return transport.Errorf(transport.ErrBuffer,
				"rank %d slot ends past the %d byte receive buffer", r, len(recv))
		}
	}

	return nil
}
