// Package filters provides the ready-made leaf filters a component is
// built from: kind predicates, addressing extractors, body selection,
// and terminal repliers. Every function returns an engine.Filter that
// composes with And/Or/Map like any other.
package filters

import (
	"context"

	"github.com/drblury/stanzaflow/internal/engine"
	"github.com/drblury/stanzaflow/internal/reject"
	"github.com/drblury/stanzaflow/stanza"
)

// Any matches every stanza and extracts nothing. It is the unit of And
// and a convenient chain head.
func Any() engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		return nil
	})
}

// IQ matches iq stanzas without extracting anything.
func IQ() engine.Filter {
	return kind(stanza.KindIQ)
}

// Message matches message stanzas without extracting anything.
func Message() engine.Filter {
	return kind(stanza.KindMessage)
}

// Presence matches presence stanzas without extracting anything.
func Presence() engine.Filter {
	return kind(stanza.KindPresence)
}

func kind(k stanza.Kind) engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		if st.Kind() != k {
			return nil, reject.NotFound()
		}
		return nil, nil
	})
}

// IQParam matches iq stanzas and extracts the *stanza.IQ.
func IQParam() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		if iq, ok := st.(*stanza.IQ); ok {
			return engine.One(iq), nil
		}
		return nil, reject.NotFound()
	})
}

// MessageParam matches message stanzas and extracts the *stanza.Message.
func MessageParam() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		if m, ok := st.(*stanza.Message); ok {
			return engine.One(m), nil
		}
		return nil, reject.NotFound()
	})
}

// PresenceParam matches presence stanzas and extracts the *stanza.Presence.
func PresenceParam() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		if p, ok := st.(*stanza.Presence); ok {
			return engine.One(p), nil
		}
		return nil, reject.NotFound()
	})
}

// IQGet matches get iqs and extracts the narrowed *stanza.GetIQ.
func IQGet() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		iq, ok := st.(*stanza.IQ)
		if !ok {
			return nil, reject.NotFound()
		}
		get, ok := iq.AsGet()
		if !ok {
			return nil, reject.NotFound()
		}
		return engine.One(get), nil
	})
}

// IQSet matches set iqs and extracts the narrowed *stanza.SetIQ.
func IQSet() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		iq, ok := st.(*stanza.IQ)
		if !ok {
			return nil, reject.NotFound()
		}
		set, ok := iq.AsSet()
		if !ok {
			return nil, reject.NotFound()
		}
		return engine.One(set), nil
	})
}

// From extracts the sender JID, which may be nil when the stanza carries
// no from address.
func From() engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		return engine.One(st.Sender())
	})
}

// To extracts the recipient JID, which may be nil.
func To() engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		return engine.One(st.Recipient())
	})
}

// RequireFrom extracts the sender JID, rejecting stanzas without one.
func RequireFrom() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		from := st.Sender()
		if from == nil {
			return nil, reject.NotFound()
		}
		return engine.One(from), nil
	})
}

// RequireTo extracts the recipient JID, rejecting stanzas without one.
func RequireTo() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		to := st.Recipient()
		if to == nil {
			return nil, reject.NotFound()
		}
		return engine.One(to), nil
	})
}

// ID matches stanzas carrying exactly the expected id.
func ID(expected string) engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		if st.StanzaID() != expected {
			return nil, reject.NotFound()
		}
		return nil, nil
	})
}

// IDParam extracts the stanza id; the empty string stands for an absent id.
func IDParam() engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		return engine.One(st.StanzaID())
	})
}

// Body extracts the text of the message's first body. Non-messages and
// bodyless messages are rejected.
func Body() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		m, ok := st.(*stanza.Message)
		if !ok {
			return nil, reject.NotFound()
		}
		body, ok := m.BestBody(nil)
		if !ok {
			return nil, reject.NotFound()
		}
		return engine.One(body.Text), nil
	})
}

// BodyWithLang extracts (lang, text) of the body best matching the
// preferred language tags, falling back to the first body.
func BodyWithLang(preferred ...string) engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		m, ok := st.(*stanza.Message)
		if !ok {
			return nil, reject.NotFound()
		}
		body, ok := m.BestBody(preferred)
		if !ok {
			return nil, reject.NotFound()
		}
		return engine.Extraction{body.Lang, body.Text}, nil
	})
}

// ReplyText replies to the stanza under evaluation with a plain message
// carrying the given body. Addresses are swapped; an absent sender just
// leaves the reply unaddressed.
func ReplyText(body string) engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		reply := stanza.NewMessage(cloneJID(st.Sender()))
		reply.From = cloneJID(st.Recipient())
		reply.WithBody("", body)
		return engine.One(engine.ReplyStanza(reply))
	})
}

// Echo replies to a message with its own bodies, addresses swapped.
// Non-messages and bodyless messages are rejected.
func Echo() engine.Filter {
	return engine.FilterFn(func(ctx context.Context, st stanza.Stanza) (engine.Extraction, error) {
		m, ok := st.(*stanza.Message)
		if !ok {
			return nil, reject.NotFound()
		}
		if len(m.Bodies) == 0 {
			return nil, reject.NotFound()
		}
		reply := &stanza.Message{
			From:   cloneJID(m.To),
			To:     cloneJID(m.From),
			Type:   m.Type,
			Bodies: append([]stanza.Body(nil), m.Bodies...),
		}
		return engine.One(engine.ReplyStanza(reply)), nil
	})
}

// Sink consumes the stanza and replies with nothing. Use it as the tail
// of a chain that has sent its own stanzas.
func Sink() engine.Filter {
	return engine.InfallibleFn(func(ctx context.Context, st stanza.Stanza) engine.Extraction {
		return engine.One(engine.Nothing())
	})
}

func cloneJID(j *stanza.JID) *stanza.JID {
	if j == nil {
		return nil
	}
	return j.Clone()
}
