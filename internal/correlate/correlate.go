// Package correlate matches asynchronous outbound requests to their
// eventual inbound replies by stanza id, and gives in-flight filter
// evaluations a shared handle for sending stanzas mid-chain.
package correlate

import (
	"context"
	"errors"
	"sync"

	"github.com/drblury/stanzaflow/internal/runtime/ids"
	"github.com/drblury/stanzaflow/stanza"
)

// ErrClosed is returned by Send once the owning server has shut down.
var ErrClosed = errors.New("stanzaflow: correlation context closed")

// ErrMissingID is returned by Register for an empty stanza id.
var ErrMissingID = errors.New("stanzaflow: cannot correlate a stanza without an id")

// Context tracks outbound requests awaiting a correlated inbound
// response. One Context exists per server run; the pending table and
// the outbound channel are shared by every concurrently executing
// filter evaluation.
type Context struct {
	pending sync.Map // stanza id -> chan stanza.Stanza (cap 1, single use)

	mu       sync.Mutex
	outbound chan stanza.Stanza
	closed   bool
}

// New creates a correlation context. The buffer bounds how many
// outbound stanzas can queue before Send blocks the sending evaluation.
func New(buffer int) *Context {
	if buffer <= 0 {
		buffer = 64
	}
	return &Context{outbound: make(chan stanza.Stanza, buffer)}
}

// Register inserts a single-use response slot keyed by id and returns
// the channel the caller waits on for the correlated reply.
func (c *Context) Register(id string) (<-chan stanza.Stanza, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	ch := make(chan stanza.Stanza, 1)
	c.pending.Store(id, ch)
	return ch, nil
}

// TakePending atomically removes and returns the response slot for id.
// A second call with the same id finds nothing: delivery is at most
// once per registered request.
func (c *Context) TakePending(id string) (chan<- stanza.Stanza, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := c.pending.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return v.(chan stanza.Stanza), true
}

// Send enqueues a stanza for delivery by the server run loop. Safe to
// call from any in-flight evaluation.
func (c *Context) Send(st stanza.Stanza) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	out := c.outbound
	c.mu.Unlock()

	out <- st
	return nil
}

// Request sends st and returns a channel carrying the correlated reply.
// IQs without an id are assigned a generated one first. The wait has no
// built-in timeout; wrap the receive with a context or timer as needed.
func (c *Context) Request(st stanza.Stanza) (<-chan stanza.Stanza, error) {
	id := st.StanzaID()
	if id == "" {
		id = ids.NewStanzaID()
		switch s := st.(type) {
		case *stanza.IQ:
			s.ID = id
		case *stanza.Message:
			s.ID = id
		case *stanza.Presence:
			s.ID = id
		}
	}

	waiter, err := c.Register(id)
	if err != nil {
		return nil, err
	}
	if err := c.Send(st); err != nil {
		c.TakePending(id)
		return nil, err
	}
	return waiter, nil
}

// Outbound exposes the queue drained by the server run loop.
func (c *Context) Outbound() <-chan stanza.Stanza {
	return c.outbound
}

// Close marks the context closed. Pending waiters are left in place;
// they belong to evaluations that will be torn down with the server.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type ctxKey struct{}

// Install attaches the correlation context so leaf filters can reach it.
func Install(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the installed correlation context.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}

// MustFromContext is FromContext for call sites that only run inside a
// server evaluation, where absence is a programming error.
func MustFromContext(ctx context.Context) *Context {
	c, ok := FromContext(ctx)
	if !ok {
		panic("stanzaflow: no correlation context; sending requires a running server")
	}
	return c
}
