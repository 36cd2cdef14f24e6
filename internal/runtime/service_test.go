package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/stanzaflow/internal/engine"
	"github.com/drblury/stanzaflow/internal/reject"
	configpkg "github.com/drblury/stanzaflow/internal/runtime/config"
	loggingpkg "github.com/drblury/stanzaflow/internal/runtime/logging"
	"github.com/drblury/stanzaflow/stanza"
	transportpkg "github.com/drblury/stanzaflow/transport"
)

type capturingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  string
	msg    string
	fields loggingpkg.LogFields
}

func (l *capturingLogger) record(level, msg string, fields loggingpkg.LogFields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *capturingLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger { return l }
func (l *capturingLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, fields)
}
func (l *capturingLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, fields)
}
func (l *capturingLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, fields)
}
func (l *capturingLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, fields)
}

func (l *capturingLogger) find(level, msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// channelBuilder builds a gochannel transport and exposes the pubsub so
// tests can publish and subscribe directly.
func channelBuilder(pubSub *gochannel.GoChannel) transportpkg.Builder {
	return func(ctx context.Context, cfg transportpkg.Config, logger watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pubSub, Subscriber: pubSub}, nil
	}
}

func newTestService(t *testing.T, filter engine.Filter, mutate func(*configpkg.Config)) (*Service, *gochannel.GoChannel) {
	t.Helper()

	cfg := &configpkg.Config{Transport: "channel"}
	if mutate != nil {
		mutate(cfg)
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	svc := NewService(cfg, filter, loggingpkg.Nop(), context.Background(), ServiceDependencies{
		TransportBuilder: channelBuilder(pubSub),
	})
	return svc, pubSub
}

func encodeOrFail(t *testing.T, st stanza.Stanza) *message.Message {
	t.Helper()
	msg, err := transportpkg.Encode(st)
	require.NoError(t, err)
	msg.SetContext(context.Background())
	return msg
}

func iqEcho() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		iq, ok := st.(*stanza.IQ)
		if !ok {
			return nil, reject.Known(reject.ServiceUnavailable)
		}
		get, ok := iq.AsGet()
		if !ok {
			return nil, reject.Known(reject.BadRequest)
		}
		result := &stanza.IQ{
			From: get.To,
			To:   get.From,
			ID:   get.ID,
			Type: stanza.IQResult,
		}
		return engine.One(engine.ReplyStanza(result)), nil
	})
}

func TestHandleInbound_Reply(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	in := encodeOrFail(t, &stanza.IQ{
		From: stanza.MustParseJID("alice@example.com"),
		To:   stanza.MustParseJID("echo.example.com"),
		ID:   "q1",
		Type: stanza.IQGet,
	})

	out, err := svc.handleInbound(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	reply, err := transportpkg.Decode(out[0])
	require.NoError(t, err)
	iq, ok := reply.(*stanza.IQ)
	require.True(t, ok)
	assert.Equal(t, stanza.IQResult, iq.Type)
	assert.Equal(t, "q1", iq.ID)
	assert.Equal(t, "echo.example.com", iq.From.String())
	assert.Equal(t, "alice@example.com", iq.To.String())
}

func TestHandleInbound_RejectedIQGetsErrorReply(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	in := encodeOrFail(t, &stanza.IQ{ID: "q2", Type: stanza.IQSet})

	out, err := svc.handleInbound(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	reply, err := transportpkg.Decode(out[0])
	require.NoError(t, err)
	iq, ok := reply.(*stanza.IQ)
	require.True(t, ok)
	assert.Equal(t, stanza.IQError, iq.Type)
	assert.Equal(t, "q2", iq.ID)
	require.NotNil(t, iq.Error)
	assert.Equal(t, "bad-request", iq.Error.Condition)
}

func TestHandleInbound_SuppressedReply(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	// Presence without an id cannot be answered with an error.
	in := encodeOrFail(t, &stanza.Presence{From: stanza.MustParseJID("x@example.com")})

	out, err := svc.handleInbound(in)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestHandleInbound_UndecodablePayload(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	msg := message.NewMessage("bad", []byte("not a stanza"))
	msg.SetContext(context.Background())

	_, err := svc.handleInbound(msg)
	require.Error(t, err)
	var unprocessable *UnprocessableStanzaError
	assert.ErrorAs(t, err, &unprocessable)
}

func TestHandleInbound_CorrelatedResponseShortCircuits(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	ch, err := svc.corr.Register("req-9")
	require.NoError(t, err)

	in := encodeOrFail(t, &stanza.IQ{ID: "req-9", Type: stanza.IQResult})

	out, err := svc.handleInbound(in)
	require.NoError(t, err)
	assert.Empty(t, out)

	select {
	case resp := <-ch:
		iq, ok := resp.(*stanza.IQ)
		require.True(t, ok)
		assert.Equal(t, "req-9", iq.ID)
	default:
		t.Fatal("response was not delivered to the pending request")
	}
}

func TestHandleInbound_CorrelationDisabled(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), func(cfg *configpkg.Config) {
		cfg.DisableCorrelation = true
	})

	_, err := svc.corr.Register("req-10")
	require.NoError(t, err)

	// The result is handed to the filter chain, which rejects it.
	in := encodeOrFail(t, &stanza.IQ{ID: "req-10", Type: stanza.IQResult})

	out, err := svc.handleInbound(in)
	require.NoError(t, err)
	require.Len(t, out, 1)

	reply, err := transportpkg.Decode(out[0])
	require.NoError(t, err)
	assert.Equal(t, stanza.IQError, reply.(*stanza.IQ).Type)
}

func TestRequest_Timeout(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	origAfter := timeAfter
	defer func() { timeAfter = origAfter }()
	expired := make(chan time.Time)
	close(expired)
	timeAfter = func(time.Duration) <-chan time.Time { return expired }

	_, err := svc.Request(context.Background(), &stanza.IQ{ID: "slow-1", Type: stanza.IQGet})
	require.Error(t, err)
	rej, ok := err.(*reject.Rejection)
	require.True(t, ok)
	assert.Equal(t, reject.RemoteServerTimeout, rej.Cause())

	// The pending slot was cleaned up.
	_, ok = svc.corr.TakePending("slow-1")
	assert.False(t, ok)
}

func TestRequest_ContextCancelled(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Request(ctx, &stanza.IQ{ID: "slow-2", Type: stanza.IQGet})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_EndToEnd(t *testing.T) {
	svc, pubSub := newTestService(t, iqEcho(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbound, err := pubSub.Subscribe(ctx, svc.Conf.OutboundTopic)
	require.NoError(t, err)

	go func() {
		if err := svc.Start(ctx); err != nil && ctx.Err() == nil {
			t.Errorf("service stopped: %v", err)
		}
	}()

	select {
	case <-svc.router.Running():
	case <-time.After(10 * time.Second):
		t.Fatal("router did not start")
	}

	in := encodeOrFail(t, &stanza.IQ{
		From: stanza.MustParseJID("alice@example.com"),
		To:   stanza.MustParseJID("echo.example.com"),
		ID:   "e2e-1",
		Type: stanza.IQGet,
	})
	require.NoError(t, pubSub.Publish(svc.Conf.InboundTopic, in))

	select {
	case msg := <-outbound:
		msg.Ack()
		reply, err := transportpkg.Decode(msg)
		require.NoError(t, err)
		iq, ok := reply.(*stanza.IQ)
		require.True(t, ok)
		assert.Equal(t, stanza.IQResult, iq.Type)
		assert.Equal(t, "e2e-1", iq.ID)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the reply")
	}
}

func TestService_RequestRoundTrip(t *testing.T) {
	svc, pubSub := newTestService(t, iqEcho(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outbound, err := pubSub.Subscribe(ctx, svc.Conf.OutboundTopic)
	require.NoError(t, err)

	go svc.Start(ctx)

	select {
	case <-svc.router.Running():
	case <-time.After(10 * time.Second):
		t.Fatal("router did not start")
	}

	type result struct {
		resp stanza.Stanza
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := svc.Request(ctx, &stanza.IQ{
			To:   stanza.MustParseJID("other.example.com"),
			ID:   "rt-1",
			Type: stanza.IQGet,
		})
		done <- result{resp, err}
	}()

	// The request shows up on the outbound topic.
	select {
	case msg := <-outbound:
		msg.Ack()
		sent, err := transportpkg.Decode(msg)
		require.NoError(t, err)
		assert.Equal(t, "rt-1", sent.StanzaID())
	case <-time.After(10 * time.Second):
		t.Fatal("request was never published")
	}

	// Feed the matching response through the inbound topic.
	resp := encodeOrFail(t, &stanza.IQ{
		From: stanza.MustParseJID("other.example.com"),
		ID:   "rt-1",
		Type: stanza.IQResult,
	})
	require.NoError(t, pubSub.Publish(svc.Conf.InboundTopic, resp))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		iq, ok := r.resp.(*stanza.IQ)
		require.True(t, ok)
		assert.Equal(t, stanza.IQResult, iq.Type)
		assert.Equal(t, "rt-1", iq.ID)
	case <-time.After(10 * time.Second):
		t.Fatal("request never completed")
	}
}

func TestNewService_InvalidConfigPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewService(&configpkg.Config{Transport: "nats"}, iqEcho(), loggingpkg.Nop(), context.Background(), ServiceDependencies{})
	})
}

func TestNewService_UnknownTransportPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewService(&configpkg.Config{Transport: "telegraph"}, iqEcho(), loggingpkg.Nop(), context.Background(), ServiceDependencies{
			TransportRegistry: transportpkg.NewRegistry(),
		})
	})
}

func TestSend_QueuesOutbound(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	msg := stanza.NewMessage(stanza.MustParseJID("bob@example.com")).WithBody("", "hi")
	require.NoError(t, svc.Send(msg))

	select {
	case st := <-svc.corr.Outbound():
		assert.Equal(t, stanza.KindMessage, st.Kind())
	default:
		t.Fatal("stanza was not queued")
	}
}
