package comm

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/typedcomm/hooking"
)

// OpLogger is a hook that traces the operations of a Communicator.
type OpLogger struct {
	logger zerolog.Logger
}

// NewOpLogger returns an OpLogger writing debug events into logger.
func NewOpLogger(logger zerolog.Logger) *OpLogger {
	return &OpLogger{logger: logger}
}

// Func writes one event per hook invocation.
func (h *OpLogger) Func(ctx hooking.HookCtx) {
	op, ok := ctx.Item.(Op)
	if !ok {
		return
	}

	ev := h.logger.Debug()
	if ctx.Pos == HookPosOpFault {
		ev = h.logger.Warn()
	}

	if c, ok := ctx.Domain.(*Communicator); ok {
		ev = ev.Int("rank", c.Rank())
	}

	if err, ok := ctx.Detail.(error); ok && err != nil {
		ev = ev.Err(err)
	}

	ev.Str("pos", ctx.Pos.Name).
		Str("event", op.Event).
		Str("datatype", op.Datatype.String()).
		Int("count", op.Count).
		Msg(op.String())
}
