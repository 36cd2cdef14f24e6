// Package stanza defines the in-memory data model for XMPP stanzas: the
// three top-level kinds (IQ, Message, Presence), addressing (JID), opaque
// payload elements, and stanza errors. Parsing and serializing the XML
// wire form is deliberately out of scope; transports carry stanzas in a
// JSON envelope instead.
package stanza

// Kind names the three stanza variants.
type Kind string

const (
	KindIQ       Kind = "iq"
	KindMessage  Kind = "message"
	KindPresence Kind = "presence"
)

// Stanza is the sum of the three top-level XMPP stanza kinds. The
// concrete types are *IQ, *Message, and *Presence; no other
// implementations exist.
type Stanza interface {
	// Kind reports which variant this stanza is.
	Kind() Kind
	// Sender returns the from address, or nil when absent.
	Sender() *JID
	// Recipient returns the to address, or nil when absent.
	Recipient() *JID
	// StanzaID returns the id attribute. IQ ids are always present;
	// Message and Presence ids may be "" (absent).
	StanzaID() string

	stanzaMarker()
}

var (
	_ Stanza = (*IQ)(nil)
	_ Stanza = (*Message)(nil)
	_ Stanza = (*Presence)(nil)
)
