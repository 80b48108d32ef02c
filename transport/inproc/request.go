package inproc

import "github.com/sarchlab/typedcomm/transport"

type request struct {
	done chan struct{}
	err  error
}

func newRequest() *request {
	return &request{done: make(chan struct{})}
}

func completedRequest(err error) *request {
	r := newRequest()
	r.complete(err)

	return r
}

func (r *request) complete(err error) {
	r.err = err
	close(r.done)
}

func (r *request) Completed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *request) wait() error {
	<-r.done
	return r.err
}

func asRequest(req transport.Request) (*request, error) {
	r, ok := req.(*request)
	if !ok || r == nil {
		return nil, transport.Errorf(transport.ErrRequest, "%T is not an inproc request", req)
	}

	return r, nil
}
