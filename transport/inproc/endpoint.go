package inproc

import (
	"sync"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

type endpointState int

const (
	stateFresh endpointState = iota
	stateInitialized
	stateFinalized
)

// Endpoint is the transport of one rank of a World.
type Endpoint struct {
	world *World
	rank  int

	lock   sync.Mutex
	state  endpointState
	args   []string
	collID int
}

var _ transport.Transport = (*Endpoint)(nil)

// Init marks the endpoint as joined. The arguments are kept for inspection
// only.
func (e *Endpoint) Init(args []string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch e.state {
	case stateInitialized:
		return transport.Errorf(transport.ErrInitialized, "rank %d", e.rank)
	case stateFinalized:
		return transport.Errorf(transport.ErrFinalized, "rank %d", e.rank)
	}

	e.args = append([]string(nil), args...)
	e.state = stateInitialized

	return nil
}

// Finalize marks the endpoint as left.
func (e *Endpoint) Finalize() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch e.state {
	case stateFresh:
		return transport.Errorf(transport.ErrNotInitialized, "rank %d", e.rank)
	case stateFinalized:
		return transport.Errorf(transport.ErrFinalized, "rank %d", e.rank)
	}

	e.state = stateFinalized

	return nil
}

// Initialized reports whether the endpoint is usable.
func (e *Endpoint) Initialized() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.state == stateInitialized
}

// Args returns the arguments passed to Init.
func (e *Endpoint) Args() []string {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.args
}

// Rank returns the rank of the endpoint.
func (e *Endpoint) Rank() int {
	return e.rank
}

// Size returns the number of ranks in the world.
func (e *Endpoint) Size() int {
	return e.world.Size()
}

// Wtime returns the seconds elapsed since the world was created.
func (e *Endpoint) Wtime() float64 {
	return e.world.wtime()
}

// ErrorString describes an error returned by the endpoint.
func (e *Endpoint) ErrorString(err error) string {
	return transport.Describe(err)
}

func (e *Endpoint) nextCollectiveID() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	id := e.collID
	e.collID++

	return id
}

func (e *Endpoint) mustBeInitialized() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch e.state {
	case stateFresh:
		return transport.Errorf(transport.ErrNotInitialized, "rank %d", e.rank)
	case stateFinalized:
		return transport.Errorf(transport.ErrFinalized, "rank %d", e.rank)
	}

	return nil
}

func checkBuffer(buf []byte, count int, dt datatype.Datatype) (int, error) {
	if !dt.Valid() {
		return 0, transport.Errorf(transport.ErrType, "%s", dt)
	}

	if count < 0 {
		return 0, transport.Errorf(transport.ErrCount, "count %d", count)
	}

	n := count * dt.Size()
	if len(buf) < n {
		return 0, transport.Errorf(transport.ErrBuffer,
			"%d bytes cannot hold %d elements of %s", len(buf), count, dt)
	}

	return n, nil
}

func (e *Endpoint) checkPeer(rank int, wildcard bool) error {
	if wildcard && rank == transport.AnySource {
		return nil
	}

	if rank < 0 || rank >= e.Size() {
		return transport.Errorf(transport.ErrRank, "rank %d outside [0, %d)", rank, e.Size())
	}

	return nil
}

func checkTag(tag int, wildcard bool) error {
	if wildcard && tag == transport.AnyTag {
		return nil
	}

	if tag < 0 {
		return transport.Errorf(transport.ErrTag, "tag %d", tag)
	}

	return nil
}

func (e *Endpoint) checkRoot(root int) error {
	if root < 0 || root >= e.Size() {
		return transport.Errorf(transport.ErrRoot, "root %d outside [0, %d)", root, e.Size())
	}

	return nil
}
