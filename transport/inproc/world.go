// Package inproc is a transport whose ranks are goroutines of the current
// process. Messages are copied between per-rank mailboxes, so a buffer handed
// to a send can be reused as soon as the send returns.
//
// Point-to-point and collective traffic use separate matching contexts, so
// user tags never collide with the messages collectives exchange internally.
// Collectives are matched by a per-rank sequence number, which requires every
// rank to issue collectives in the same order.
package inproc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/typedcomm/transport"
)

// World is a group of in-process ranks.
type World struct {
	origin    time.Time
	boxes     []*mailbox
	endpoints []*Endpoint

	abortOnce sync.Once
}

// NewWorld creates a world with the given number of ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Sprintf("inproc: world size must be at least 1, got %d", size))
	}

	w := &World{
		origin:    time.Now(),
		boxes:     make([]*mailbox, size),
		endpoints: make([]*Endpoint, size),
	}

	for i := 0; i < size; i++ {
		w.boxes[i] = newMailbox()
		w.endpoints[i] = &Endpoint{world: w, rank: i}
	}

	return w
}

// Size returns the number of ranks.
func (w *World) Size() int {
	return len(w.endpoints)
}

// Endpoint returns the transport of the given rank.
func (w *World) Endpoint(rank int) *Endpoint {
	return w.endpoints[rank]
}

// Abort fails every pending and future receive of the world with reason. It
// is how a failing rank releases the peers that wait for it.
func (w *World) Abort(reason error) {
	w.abortOnce.Do(func() {
		err := transport.Errorf(transport.ErrOther, "world aborted: %v", reason)
		for _, box := range w.boxes {
			box.abort(err)
		}
	})
}

// Run calls fn once per rank, each on its own goroutine, and waits for all of
// them. If a rank returns an error or panics, the world is aborted so that
// the other ranks do not wait forever.
func (w *World) Run(fn func(t transport.Transport) error) error {
	errs := make([]error, w.Size())

	var wg sync.WaitGroup
	for rank := range w.endpoints {
		wg.Add(1)

		go func(rank int) {
			defer wg.Done()

			defer func() {
				if p := recover(); p != nil {
					errs[rank] = fmt.Errorf("rank %d panicked: %v", rank, p)
					w.Abort(errs[rank])
				}
			}()

			if err := fn(w.endpoints[rank]); err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				w.Abort(errs[rank])
			}
		}(rank)
	}

	wg.Wait()

	return errors.Join(errs...)
}

func (w *World) wtime() float64 {
	return time.Since(w.origin).Seconds()
}
