package stanza

// PresenceType is the type attribute of a presence stanza. An empty
// value means "available".
type PresenceType string

const (
	PresenceAvailable    PresenceType = ""
	PresenceUnavailable  PresenceType = "unavailable"
	PresenceSubscribe    PresenceType = "subscribe"
	PresenceSubscribed   PresenceType = "subscribed"
	PresenceUnsubscribe  PresenceType = "unsubscribe"
	PresenceUnsubscribed PresenceType = "unsubscribed"
	PresenceProbe        PresenceType = "probe"
	PresenceError        PresenceType = "error"
)

// Presence is a broadcast availability stanza. The id is optional.
type Presence struct {
	From     *JID         `json:"from,omitempty"`
	To       *JID         `json:"to,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     PresenceType `json:"type,omitempty"`
	Payloads []*Element   `json:"payloads,omitempty"`
	Error    *Error       `json:"error,omitempty"`
}

func (p *Presence) Kind() Kind       { return KindPresence }
func (p *Presence) Sender() *JID     { return p.From }
func (p *Presence) Recipient() *JID  { return p.To }
func (p *Presence) StanzaID() string { return p.ID }
func (p *Presence) stanzaMarker()    {}

// ErrorReply builds the error presence answering this one, with the same
// suppression rule as messages: no reply when the original is already an
// error or carries no id.
func (p *Presence) ErrorReply(stanzaErr *Error) *Presence {
	if p.Type == PresenceError || p.ID == "" {
		return nil
	}
	return &Presence{
		From:  p.To.Clone(),
		To:    p.From.Clone(),
		ID:    p.ID,
		Type:  PresenceError,
		Error: stanzaErr,
	}
}
