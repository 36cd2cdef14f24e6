package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transportpkg "github.com/drblury/stanzaflow/transport"
)

func passthroughHandler(produced []*message.Message, err error) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		return produced, err
	}
}

func TestRetryMiddlewareConfig_WithDefaults(t *testing.T) {
	cfg := RetryMiddlewareConfig{}.withDefaults()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialInterval)
	assert.Equal(t, 16*time.Second, cfg.MaxInterval)

	custom := RetryMiddlewareConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Second}.withDefaults()
	assert.Equal(t, 2, custom.MaxRetries)
	assert.Equal(t, time.Millisecond, custom.InitialInterval)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	mw := svc.correlationIDMiddleware()
	handler := mw(passthroughHandler(nil, nil))

	t.Run("assigns when missing", func(t *testing.T) {
		msg := message.NewMessage("m1", nil)
		_, err := handler(msg)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.Metadata["correlation_id"])
	})

	t.Run("keeps existing", func(t *testing.T) {
		msg := message.NewMessage("m2", nil)
		msg.Metadata["correlation_id"] = "fixed"
		_, err := handler(msg)
		require.NoError(t, err)
		assert.Equal(t, "fixed", msg.Metadata["correlation_id"])
	})
}

func TestLogStanzasMiddleware(t *testing.T) {
	log := &capturingLogger{}
	svc, _ := newTestService(t, iqEcho(), nil)

	mw := svc.logStanzasMiddleware(log)
	handler := mw(passthroughHandler(nil, nil))

	msg := message.NewMessage("m1", nil)
	msg.Metadata.Set(transportpkg.MetadataKind, "message")
	msg.Metadata.Set(transportpkg.MetadataFrom, "alice@example.com")

	_, err := handler(msg)
	require.NoError(t, err)

	entry, ok := log.find("info", "Handled stanza")
	require.True(t, ok)
	assert.Equal(t, "message", entry.fields["stanza_kind"])
	assert.Equal(t, "alice@example.com", entry.fields["from"])
	// Absent addressing fields are logged as a dash.
	assert.Equal(t, "-", entry.fields["to"])
	assert.Equal(t, "-", entry.fields["stanza_id"])
	assert.NotEmpty(t, entry.fields["elapsed"])
}

func TestPoisonQueueMiddleware_FilterMatchesUnprocessable(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	reg := PoisonQueueMiddleware(nil)
	mw, err := reg.Builder(svc)
	require.NoError(t, err)
	require.NotNil(t, mw)

	handler := mw(passthroughHandler(nil, &UnprocessableStanzaError{payload: "x", err: errors.New("bad")}))
	msg := message.NewMessage("m1", []byte("x"))
	msg.SetContext(t.Context())

	// The poison middleware swallows the error and routes the message away.
	_, err = handler(msg)
	assert.NoError(t, err)
}

func TestRegisterMiddleware(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	t.Run("requires middleware or builder", func(t *testing.T) {
		err := svc.RegisterMiddleware(MiddlewareRegistration{Name: "empty"})
		assert.Error(t, err)
	})

	t.Run("builder error propagates", func(t *testing.T) {
		wantErr := errors.New("nope")
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Name:    "broken",
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, wantErr },
		})
		assert.ErrorIs(t, err, wantErr)
	})

	t.Run("nil middleware from builder is skipped", func(t *testing.T) {
		err := svc.RegisterMiddleware(MiddlewareRegistration{
			Name:    "disabled",
			Builder: func(*Service) (message.HandlerMiddleware, error) { return nil, nil },
		})
		assert.NoError(t, err)
	})
}

func TestMetricsMiddleware_DisabledWithoutConfig(t *testing.T) {
	svc, _ := newTestService(t, iqEcho(), nil)

	reg := MetricsMiddleware()
	mw, err := reg.Builder(svc)
	require.NoError(t, err)
	assert.Nil(t, mw)
}

func TestUnprocessableStanzaError(t *testing.T) {
	cause := errors.New("mangled")
	err := &UnprocessableStanzaError{payload: "junk", err: cause}
	assert.Contains(t, err.Error(), "junk")
	assert.ErrorIs(t, err, cause)
}
