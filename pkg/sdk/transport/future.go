package transport

import (
	"context"
	"sync"
)

// Future is the pending outcome of an asynchronous send.
type Future struct {
	done chan struct{}
	once sync.Once

	resp *Response
	err  error

	mapErr func(*Response, error) error
	parent *Future
}

// NewFuture returns an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that is already complete.
func Resolved(resp *Response, err error) *Future {
	f := NewFuture()
	f.Resolve(resp, err)
	return f
}

// Resolve completes the Future. Only the first call has an effect, and it
// has none on a Future derived with WithErrorHandler.
func (f *Future) Resolve(resp *Response, err error) {
	if f.parent != nil {
		return
	}
	f.once.Do(func() {
		f.resp, f.err = resp, err
		close(f.done)
	})
}

// Done is closed once the outcome is available.
func (f *Future) Done() <-chan struct{} {
	if f.parent != nil {
		return f.parent.Done()
	}
	return f.done
}

// Wait blocks until the Future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-f.Done():
		return f.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome. It must only be called after Done is closed.
func (f *Future) Result() (*Response, error) {
	if f.parent != nil {
		f.once.Do(func() {
			f.resp, f.err = f.parent.Result()
			if f.err != nil {
				if f.err = f.mapErr(f.resp, f.err); f.err == nil {
					f.resp = nil
				}
			}
		})
	}
	return f.resp, f.err
}

// WithErrorHandler derives a Future whose error is passed through h along
// with the response it came with, which may be nil. When h returns nil the
// derived Future resolves to a nil response and nil error.
func (f *Future) WithErrorHandler(h func(*Response, error) error) *Future {
	return &Future{parent: f, mapErr: h}
}
