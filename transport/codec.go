package transport

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/stanzaflow/internal/runtime/ids"
	"github.com/drblury/stanzaflow/internal/runtime/jsoncodec"
	"github.com/drblury/stanzaflow/stanza"
)

// Metadata keys set on every encoded stanza message.
const (
	MetadataKind = "stanza_kind"
	MetadataID   = "stanza_id"
	MetadataFrom = "stanza_from"
	MetadataTo   = "stanza_to"
)

// envelope is the wire form of a stanza. The kind tag discriminates
// which of the payload fields is populated.
type envelope struct {
	Kind     stanza.Kind      `json:"kind"`
	IQ       *stanza.IQ       `json:"iq,omitempty"`
	Message  *stanza.Message  `json:"message,omitempty"`
	Presence *stanza.Presence `json:"presence,omitempty"`
}

// Encode serializes a stanza into a watermill message. The message UUID is
// the stanza id when present, otherwise a fresh ULID, so correlation ids
// survive the trip through the broker.
func Encode(st stanza.Stanza) (*message.Message, error) {
	if st == nil {
		return nil, fmt.Errorf("cannot encode nil stanza")
	}

	env := envelope{Kind: st.Kind()}
	switch v := st.(type) {
	case *stanza.IQ:
		env.IQ = v
	case *stanza.Message:
		env.Message = v
	case *stanza.Presence:
		env.Presence = v
	default:
		return nil, fmt.Errorf("cannot encode stanza type %T", st)
	}

	payload, err := jsoncodec.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s stanza: %w", st.Kind(), err)
	}

	uuid := st.StanzaID()
	if uuid == "" {
		uuid = ids.NewStanzaID()
	}

	msg := message.NewMessage(uuid, payload)
	msg.Metadata.Set(MetadataKind, string(st.Kind()))
	msg.Metadata.Set(MetadataID, st.StanzaID())
	if from := st.Sender(); from != nil {
		msg.Metadata.Set(MetadataFrom, from.String())
	}
	if to := st.Recipient(); to != nil {
		msg.Metadata.Set(MetadataTo, to.String())
	}

	return msg, nil
}

// Decode deserializes a watermill message back into a stanza.
func Decode(msg *message.Message) (stanza.Stanza, error) {
	var env envelope
	if err := jsoncodec.Unmarshal(msg.Payload, &env); err != nil {
		return nil, fmt.Errorf("failed to decode stanza message %s: %w", msg.UUID, err)
	}

	switch env.Kind {
	case stanza.KindIQ:
		if env.IQ == nil {
			return nil, fmt.Errorf("stanza message %s: kind %q without payload", msg.UUID, env.Kind)
		}
		return env.IQ, nil
	case stanza.KindMessage:
		if env.Message == nil {
			return nil, fmt.Errorf("stanza message %s: kind %q without payload", msg.UUID, env.Kind)
		}
		return env.Message, nil
	case stanza.KindPresence:
		if env.Presence == nil {
			return nil, fmt.Errorf("stanza message %s: kind %q without payload", msg.UUID, env.Kind)
		}
		return env.Presence, nil
	default:
		return nil, fmt.Errorf("stanza message %s: unknown kind %q", msg.UUID, env.Kind)
	}
}
