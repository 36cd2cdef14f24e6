package correlate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/stanzaflow/stanza"
)

func TestRegisterAndTakePending(t *testing.T) {
	t.Parallel()

	c := New(4)
	waiter, err := c.Register("req-1")
	require.NoError(t, err)

	tx, ok := c.TakePending("req-1")
	require.True(t, ok)

	reply := &stanza.IQ{ID: "req-1", Type: stanza.IQResult}
	tx <- reply

	select {
	case got := <-waiter:
		assert.Same(t, stanza.Stanza(reply), got)
	case <-time.After(time.Second):
		t.Fatal("correlated reply never delivered")
	}
}

func TestTakePendingIsIdempotent(t *testing.T) {
	t.Parallel()

	c := New(4)
	_, err := c.Register("req-1")
	require.NoError(t, err)

	_, ok := c.TakePending("req-1")
	require.True(t, ok)

	_, ok = c.TakePending("req-1")
	assert.False(t, ok, "second take for the same id must find nothing")
}

func TestTakePendingUnknownID(t *testing.T) {
	t.Parallel()

	c := New(4)
	_, ok := c.TakePending("nope")
	assert.False(t, ok)
	_, ok = c.TakePending("")
	assert.False(t, ok)
}

func TestRegisterRequiresID(t *testing.T) {
	t.Parallel()

	c := New(4)
	_, err := c.Register("")
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestSendQueuesOutbound(t *testing.T) {
	t.Parallel()

	c := New(4)
	st := &stanza.Presence{ID: "p1"}
	require.NoError(t, c.Send(st))

	select {
	case got := <-c.Outbound():
		assert.Same(t, stanza.Stanza(st), got)
	default:
		t.Fatal("outbound stanza not queued")
	}
}

func TestSendAfterClose(t *testing.T) {
	t.Parallel()

	c := New(4)
	c.Close()
	assert.ErrorIs(t, c.Send(&stanza.Presence{}), ErrClosed)
}

func TestRequestAssignsID(t *testing.T) {
	t.Parallel()

	c := New(4)
	iq := &stanza.IQ{Type: stanza.IQGet}

	waiter, err := c.Request(iq)
	require.NoError(t, err)
	require.NotEmpty(t, iq.ID, "request must assign an id when absent")

	// The sent stanza is queued and the id has a pending slot.
	sent := <-c.Outbound()
	assert.Same(t, stanza.Stanza(iq), sent)

	tx, ok := c.TakePending(iq.ID)
	require.True(t, ok)
	tx <- &stanza.IQ{ID: iq.ID, Type: stanza.IQResult}
	<-waiter
}

func TestRequestKeepsExistingID(t *testing.T) {
	t.Parallel()

	c := New(4)
	iq := &stanza.IQ{ID: "fixed", Type: stanza.IQGet}
	_, err := c.Request(iq)
	require.NoError(t, err)
	assert.Equal(t, "fixed", iq.ID)

	_, ok := c.TakePending("fixed")
	assert.True(t, ok)
}

func TestConcurrentRegisterTake(t *testing.T) {
	t.Parallel()

	c := New(128)
	const n = 100

	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%d", i)
		ready := make(chan struct{})
		go func(id string) {
			defer wg.Done()
			_, _ = c.Register(id)
			close(ready)
		}(id)
		go func(id string) {
			defer wg.Done()
			<-ready
			if _, ok := c.TakePending(id); !ok {
				t.Errorf("registered id %s not takeable", id)
			}
		}(id)
	}
	wg.Wait()
}

func TestContextInstallAndFrom(t *testing.T) {
	t.Parallel()

	c := New(1)
	ctx := Install(context.Background(), c)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { MustFromContext(context.Background()) })
}
