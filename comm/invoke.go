package comm

import (
	"fmt"
	"math"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/hooking"
)

// Names of the timing events recorded for each operation.
const (
	EventSend          = "comm.Send"
	EventRecv          = "comm.Recv"
	EventIsend         = "comm.Isend"
	EventIrecv         = "comm.Irecv"
	EventBcast         = "comm.Bcast"
	EventAllreduceSum  = "comm.AllreduceSum"
	EventIallreduceSum = "comm.IallreduceSum"
	EventGather        = "comm.Gather"
	EventGatherv       = "comm.Gatherv"
	EventWait          = "comm.Wait"
	EventWaitall       = "comm.Waitall"
	EventBarrier       = "comm.Barrier"
)

// Hook positions raised around every transport call.
var (
	HookPosOpStart = &hooking.HookPos{Name: "OpStart"}
	HookPosOpEnd   = &hooking.HookPos{Name: "OpEnd"}
	HookPosOpFault = &hooking.HookPos{Name: "OpFault"}
)

// noRank marks a missing peer or root. It differs from AnySource.
const noRank = math.MinInt32

// Op describes one transport call. It is the item carried by hooks.
type Op struct {
	Event    string
	Datatype datatype.Datatype
	Count    int
	Peer     int
	Tag      int
	Root     int
}

func p2pOp(event string, dt datatype.Datatype, count, peer, tag int) Op {
	return Op{Event: event, Datatype: dt, Count: count, Peer: peer, Tag: tag, Root: noRank}
}

func collectiveOp(event string, dt datatype.Datatype, count, root int) Op {
	return Op{Event: event, Datatype: dt, Count: count, Peer: noRank, Tag: noRank, Root: root}
}

func syncOp(event string) Op {
	return Op{Event: event, Peer: noRank, Tag: noRank, Root: noRank}
}

func (o Op) String() string {
	switch {
	case o.Datatype == datatype.Invalid:
		return o.Event
	case o.Peer != noRank:
		return fmt.Sprintf("%s(count=%d, datatype=%s, peer=%d, tag=%d)",
			o.Event, o.Count, o.Datatype, o.Peer, o.Tag)
	case o.Root != noRank:
		return fmt.Sprintf("%s(count=%d, datatype=%s, root=%d)",
			o.Event, o.Count, o.Datatype, o.Root)
	default:
		return fmt.Sprintf("%s(count=%d, datatype=%s)", o.Event, o.Count, o.Datatype)
	}
}

// invoke brackets call with the timer of the operation's event. The status is
// checked after the stop edge, so failed calls are counted and timed like
// successful ones.
func (c *Communicator) invoke(op Op, call func() error) error {
	if c.closed {
		return ErrClosed
	}

	c.hook(HookPosOpStart, op, nil)
	c.timer.Update(op.Event)

	err := call()

	c.timer.Update(op.Event)
	c.hook(HookPosOpEnd, op, err)

	if err != nil {
		return c.fault(op, err)
	}

	return nil
}

func (c *Communicator) hook(pos *hooking.HookPos, op Op, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   op,
		Detail: detail,
	})
}

func (c *Communicator) fault(op Op, err error) error {
	terr := &TransportError{
		Rank:       c.rank,
		Size:       c.size,
		Op:         op.String(),
		Diagnostic: c.transport.ErrorString(err),
		Err:        err,
	}

	c.logger.Error().
		Int("rank", c.rank).
		Int("size", c.size).
		Str("op", terr.Op).
		Str("diagnostic", terr.Diagnostic).
		Msg("transport fault")

	c.hook(HookPosOpFault, op, terr)
	c.onFault(terr)

	return terr
}

func (c *Communicator) single() bool {
	return c.size <= 1
}
