package stanza

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want JID
	}{
		{"example.net", JID{Domain: "example.net"}},
		{"alice@example.net", JID{Local: "alice", Domain: "example.net"}},
		{"alice@example.net/home", JID{Local: "alice", Domain: "example.net", Resource: "home"}},
		{"component.example.net/worker-1", JID{Domain: "component.example.net", Resource: "worker-1"}},
	}
	for _, tc := range cases {
		j, err := ParseJID(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, *j)
		assert.Equal(t, tc.in, j.String())
	}
}

func TestParseJIDRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "@example.net", "alice@", "alice@example.net/", "a@b@c"} {
		if _, err := ParseJID(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestJIDBare(t *testing.T) {
	t.Parallel()

	j := MustParseJID("alice@example.net/home")
	assert.Equal(t, "alice@example.net", j.Bare().String())
	assert.True(t, j.Bare().Equal(MustParseJID("alice@example.net")))
}

func TestIQNarrowing(t *testing.T) {
	t.Parallel()

	iq := &IQ{ID: "q1", Type: IQGet, Payload: NewElement("jabber:iq:version", "query")}

	get, ok := iq.AsGet()
	require.True(t, ok)
	assert.Equal(t, "q1", get.ID)
	assert.Equal(t, "query", get.Payload.Name)

	if _, ok := iq.AsSet(); ok {
		t.Fatal("get IQ narrowed to set")
	}

	iq.Type = IQResult
	if _, ok := iq.AsGet(); ok {
		t.Fatal("result IQ narrowed to get")
	}
}

func TestIQErrorReplySwapsAddresses(t *testing.T) {
	t.Parallel()

	iq := &IQ{
		From: MustParseJID("alice@example.net"),
		To:   MustParseJID("svc.example.net"),
		ID:   "q2",
		Type: IQSet,
	}
	reply := iq.ErrorReply(NewError(ErrorTypeCancel, "service-unavailable", ""))
	require.NotNil(t, reply)
	assert.Equal(t, IQError, reply.Type)
	assert.Equal(t, "q2", reply.ID)
	assert.Equal(t, "svc.example.net", reply.From.String())
	assert.Equal(t, "alice@example.net", reply.To.String())
}

func TestIQErrorReplyWithAbsentAddresses(t *testing.T) {
	t.Parallel()

	iq := &IQ{ID: "q3", Type: IQGet}
	reply := iq.ErrorReply(NewError(ErrorTypeCancel, "item-not-found", ""))
	require.NotNil(t, reply)
	assert.Nil(t, reply.From)
	assert.Nil(t, reply.To)
}

func TestMessageErrorReplySuppression(t *testing.T) {
	t.Parallel()

	stanzaErr := NewError(ErrorTypeAuth, "forbidden", "")

	t.Run("no id", func(t *testing.T) {
		m := NewMessage(MustParseJID("svc.example.net"))
		assert.Nil(t, m.ErrorReply(stanzaErr))
	})

	t.Run("already error", func(t *testing.T) {
		m := &Message{ID: "m1", Type: MessageError}
		assert.Nil(t, m.ErrorReply(stanzaErr))
	})

	t.Run("replies otherwise", func(t *testing.T) {
		m := &Message{
			From: MustParseJID("alice@example.net"),
			To:   MustParseJID("svc.example.net"),
			ID:   "42",
			Type: MessageNormal,
		}
		reply := m.ErrorReply(stanzaErr)
		require.NotNil(t, reply)
		assert.Equal(t, "42", reply.ID)
		assert.Equal(t, MessageError, reply.Type)
		assert.Equal(t, "forbidden", reply.Error.Condition)
		assert.Equal(t, ErrorTypeAuth, reply.Error.Type)
		assert.Equal(t, "alice@example.net", reply.To.String())
		assert.Equal(t, "svc.example.net", reply.From.String())
	})
}

func TestPresenceErrorReplySuppression(t *testing.T) {
	t.Parallel()

	stanzaErr := NewError(ErrorTypeCancel, "not-allowed", "")

	p := &Presence{From: MustParseJID("alice@example.net")}
	assert.Nil(t, p.ErrorReply(stanzaErr), "presence without id must be suppressed")

	p.ID = "p1"
	reply := p.ErrorReply(stanzaErr)
	require.NotNil(t, reply)
	assert.Equal(t, PresenceError, reply.Type)
	assert.Equal(t, "p1", reply.ID)
}

func TestBestBody(t *testing.T) {
	t.Parallel()

	m := NewMessage(nil).
		WithBody("de", "hallo").
		WithBody("en", "hello")

	b, ok := m.BestBody([]string{"en"})
	require.True(t, ok)
	assert.Equal(t, "hello", b.Text)

	b, ok = m.BestBody([]string{"fr"})
	require.True(t, ok)
	assert.Equal(t, "hallo", b.Text, "falls back to first body")

	b, ok = m.BestBody(nil)
	require.True(t, ok)
	assert.Equal(t, "hallo", b.Text)

	if _, ok := NewMessage(nil).BestBody(nil); ok {
		t.Fatal("message without body reported a body")
	}
}

func TestElementClone(t *testing.T) {
	t.Parallel()

	e := NewElement("urn:example", "query").
		SetAttr("node", "root").
		Append(NewElement("urn:example", "item"))

	c := e.Clone()
	c.SetAttr("node", "copy")
	c.Children[0].Text = "changed"

	assert.Equal(t, "root", e.Attr("node"))
	assert.Empty(t, e.Children[0].Text)
	assert.Equal(t, "item", e.Child("item").Name)
	assert.Nil(t, e.Child("missing"))
}
