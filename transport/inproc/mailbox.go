package inproc

import (
	"sync"

	"github.com/sarchlab/typedcomm/datatype"
	"github.com/sarchlab/typedcomm/transport"
)

const (
	contextP2P = iota
	contextCollective
)

type envelope struct {
	context int
	source  int
	tag     int
	dt      datatype.Datatype
	payload []byte
}

type pendingRecv struct {
	context int
	source  int
	tag     int
	req     *request
	deliver func(e *envelope) error
}

func (p *pendingRecv) matches(e *envelope) bool {
	return p.context == e.context &&
		(p.source == transport.AnySource || p.source == e.source) &&
		(p.tag == transport.AnyTag || p.tag == e.tag)
}

// A mailbox holds the messages that arrived at a rank and the receives that
// the rank posted before a matching message arrived. Both lists are kept in
// arrival order, which gives non-overtaking delivery per source and tag.
type mailbox struct {
	lock     sync.Mutex
	arrived  []*envelope
	posted   []*pendingRecv
	abortErr error
}

func newMailbox() *mailbox {
	return &mailbox{}
}

func (m *mailbox) put(e *envelope) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.abortErr != nil {
		return
	}

	for i, p := range m.posted {
		if p.matches(e) {
			m.posted = append(m.posted[:i], m.posted[i+1:]...)
			p.req.complete(p.deliver(e))

			return
		}
	}

	m.arrived = append(m.arrived, e)
}

func (m *mailbox) post(p *pendingRecv) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.abortErr != nil {
		p.req.complete(m.abortErr)
		return
	}

	for i, e := range m.arrived {
		if p.matches(e) {
			m.arrived = append(m.arrived[:i], m.arrived[i+1:]...)
			p.req.complete(p.deliver(e))

			return
		}
	}

	m.posted = append(m.posted, p)
}

func (m *mailbox) abort(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.abortErr = err
	for _, p := range m.posted {
		p.req.complete(err)
	}

	m.posted = nil
	m.arrived = nil
}
