// Package comm provides a Communicator, a typed layer over a message-passing
// transport.
//
// Application code hands typed slices and values to the Communicator, which
// resolves the datatype, times the call and delegates to the transport.
// Because Go methods cannot take type parameters, the typed operations are
// package functions that take the Communicator as their first argument:
//
//	err := comm.Send(c, buf, len(buf), 1, tag)
//	err = comm.AllreduceSum(c, &total)
//
// When the group has a single member, every communication call returns nil
// without touching its buffers, so programs do not need to special-case
// single-process runs.
//
// Strings and dynamic slices travel in two phases: an int32 length, then the
// payload. Point-to-point transfers send the length on tag+LengthTagOffset and
// the payload on tag, so a caller must not use tag+1 for another transfer to
// the same peer at the same time. Receiving such a transfer with AnySource is
// not supported, since the payload must come from the peer that sent the
// length.
//
// The layer does not detect protocol misuse: collectives issued in different
// orders on different ranks, mismatched tags, or a buffer modified while a
// non-blocking operation on it is in flight. Their effect is a deadlock or
// corrupted data.
package comm
