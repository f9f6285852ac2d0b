// Package hook lets callers observe and intercept every HTTP request the
// uploader sends.
//
// A Hook sees the request after it is fully built and may cancel it, then
// sees the response once it arrives and may rewrite it before the uploader
// interprets it. Hooks share per-request state through the Request's data
// map. A hook returning an error aborts the operation as a user
// cancellation, never as a transport failure, so it does not trigger
// endpoint failover.
package hook

import (
	"fmt"
	"net/http"

	"github.com/nimbusfs/uplink/errors"
)

// Request wraps the outgoing HTTP request together with a scratch data map
// that lives for the duration of a single request attempt.
type Request struct {
	// HTTP is the request about to be sent. Hooks may mutate headers.
	HTTP *http.Request

	data map[string]any
}

// NewRequest wraps req for hook dispatch.
func NewRequest(req *http.Request) *Request {
	return &Request{HTTP: req}
}

// SetData stores a value visible to later hooks of the same request.
func (r *Request) SetData(key string, value any) {
	if r.data == nil {
		r.data = make(map[string]any)
	}
	r.data[key] = value
}

// Data returns a value stored by an earlier hook.
func (r *Request) Data(key string) (any, bool) {
	v, ok := r.data[key]
	return v, ok
}

// Hook observes one HTTP exchange. Before runs ahead of the request, After
// runs once on the response; After may replace resp.Body and the uploader
// reads whatever body is present when the chain finishes. Either method
// returning an error cancels the operation.
type Hook interface {
	Before(req *Request) error
	After(req *Request, resp *http.Response) error
}

// BeforeFunc adapts a plain function into a Hook that only inspects
// requests.
type BeforeFunc func(req *Request) error

func (f BeforeFunc) Before(req *Request) error { return f(req) }

func (f BeforeFunc) After(*Request, *http.Response) error { return nil }

// AfterFunc adapts a plain function into a Hook that only inspects
// responses.
type AfterFunc func(req *Request, resp *http.Response) error

func (f AfterFunc) Before(*Request) error { return nil }

func (f AfterFunc) After(req *Request, resp *http.Response) error { return f(req, resp) }

// Chain is an ordered collection of hooks. Front-inserted hooks run ahead of
// back-inserted ones, most recently front-inserted first; back-inserted
// hooks run in insertion order.
type Chain struct {
	hooks []Hook
}

// InsertFront adds h ahead of every existing hook.
func (c *Chain) InsertFront(h Hook) {
	c.hooks = append([]Hook{h}, c.hooks...)
}

// InsertBack adds h after every existing hook.
func (c *Chain) InsertBack(h Hook) {
	c.hooks = append(c.hooks, h)
}

// Len returns the number of installed hooks.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// RunBefore invokes every hook's Before in chain order. The first error
// stops the chain and is reported as a user cancellation.
func (c *Chain) RunBefore(req *Request) error {
	for _, h := range c.hooks {
		if err := h.Before(req); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrUserCanceled, err)
		}
	}
	return nil
}

// RunAfter invokes every hook's After in chain order. The first error stops
// the chain and is reported as a user cancellation.
func (c *Chain) RunAfter(req *Request, resp *http.Response) error {
	for _, h := range c.hooks {
		if err := h.After(req, resp); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrUserCanceled, err)
		}
	}
	return nil
}
