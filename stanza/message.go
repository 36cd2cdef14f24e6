package stanza

// MessageType is the type attribute of a message stanza. An empty value
// is treated as "normal" per RFC 6121.
type MessageType string

const (
	MessageNormal    MessageType = "normal"
	MessageChat      MessageType = "chat"
	MessageGroupchat MessageType = "groupchat"
	MessageHeadline  MessageType = "headline"
	MessageError     MessageType = "error"
)

// Body is one language-tagged body of a message.
type Body struct {
	Lang string `json:"lang,omitempty"`
	Text string `json:"text"`
}

// Message is a push stanza. The id is optional.
type Message struct {
	From     *JID        `json:"from,omitempty"`
	To       *JID        `json:"to,omitempty"`
	ID       string      `json:"id,omitempty"`
	Type     MessageType `json:"type,omitempty"`
	Bodies   []Body      `json:"bodies,omitempty"`
	Payloads []*Element  `json:"payloads,omitempty"`
	Error    *Error      `json:"error,omitempty"`
}

// NewMessage builds a normal message addressed to the given JID (which
// may be nil).
func NewMessage(to *JID) *Message {
	return &Message{To: to, Type: MessageNormal}
}

func (m *Message) Kind() Kind       { return KindMessage }
func (m *Message) Sender() *JID     { return m.From }
func (m *Message) Recipient() *JID  { return m.To }
func (m *Message) StanzaID() string { return m.ID }
func (m *Message) stanzaMarker()    {}

// WithBody appends a language-tagged body and returns the message for
// chaining.
func (m *Message) WithBody(lang, text string) *Message {
	m.Bodies = append(m.Bodies, Body{Lang: lang, Text: text})
	return m
}

// BestBody picks the body best matching the preferred language tags, in
// preference order. With no preferences, or when none match, it falls
// back to the first body. The second return is false when the message
// has no body at all.
func (m *Message) BestBody(preferred []string) (Body, bool) {
	if len(m.Bodies) == 0 {
		return Body{}, false
	}
	for _, lang := range preferred {
		for _, b := range m.Bodies {
			if b.Lang == lang {
				return b, true
			}
		}
	}
	return m.Bodies[0], true
}

// ErrorReply builds the error message answering this one, or nil when a
// reply must be suppressed: error-typed messages are never answered
// (avoids error loops) and messages without an id cannot be correlated
// by the peer, so answering them is pointless.
func (m *Message) ErrorReply(stanzaErr *Error) *Message {
	if m.Type == MessageError || m.ID == "" {
		return nil
	}
	return &Message{
		From:  m.To.Clone(),
		To:    m.From.Clone(),
		ID:    m.ID,
		Type:  MessageError,
		Error: stanzaErr,
	}
}
