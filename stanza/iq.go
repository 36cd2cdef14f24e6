package stanza

// IQType is the type attribute of an IQ stanza. Unlike messages and
// presence, every IQ is one of exactly four shapes.
type IQType string

const (
	IQGet    IQType = "get"
	IQSet    IQType = "set"
	IQResult IQType = "result"
	IQError  IQType = "error"
)

// IQ is a request/response stanza. The id is mandatory: it is what
// correlates a result or error with the request that caused it.
type IQ struct {
	From    *JID    `json:"from,omitempty"`
	To      *JID    `json:"to,omitempty"`
	ID      string  `json:"id"`
	Type    IQType  `json:"type"`
	Payload *Element `json:"payload,omitempty"`
	Error   *Error  `json:"error,omitempty"`
}

func (iq *IQ) Kind() Kind       { return KindIQ }
func (iq *IQ) Sender() *JID     { return iq.From }
func (iq *IQ) Recipient() *JID  { return iq.To }
func (iq *IQ) StanzaID() string { return iq.ID }
func (iq *IQ) stanzaMarker()    {}

// GetIQ is an IQ narrowed to the get shape. Holding one proves the
// narrowing already succeeded, so downstream code never re-checks Type.
type GetIQ struct {
	From    *JID
	To      *JID
	ID      string
	Payload *Element
}

// SetIQ is an IQ narrowed to the set shape.
type SetIQ struct {
	From    *JID
	To      *JID
	ID      string
	Payload *Element
}

// AsGet narrows the IQ to its get shape. The second return is false for
// any other type.
func (iq *IQ) AsGet() (*GetIQ, bool) {
	if iq.Type != IQGet {
		return nil, false
	}
	return &GetIQ{From: iq.From, To: iq.To, ID: iq.ID, Payload: iq.Payload}, true
}

// AsSet narrows the IQ to its set shape.
func (iq *IQ) AsSet() (*SetIQ, bool) {
	if iq.Type != IQSet {
		return nil, false
	}
	return &SetIQ{From: iq.From, To: iq.To, ID: iq.ID, Payload: iq.Payload}, true
}

// Result builds the result IQ answering this request: same id, swapped
// addresses, the given payload (may be nil for an empty result).
func (iq *IQ) Result(payload *Element) *IQ {
	return &IQ{
		From:    iq.To.Clone(),
		To:      iq.From.Clone(),
		ID:      iq.ID,
		Type:    IQResult,
		Payload: payload,
	}
}

// ErrorReply builds the error IQ answering this request. Every IQ is
// answered, whatever its own type; suppression rules apply only to
// message and presence stanzas.
func (iq *IQ) ErrorReply(stanzaErr *Error) *IQ {
	return &IQ{
		From:  iq.To.Clone(),
		To:    iq.From.Clone(),
		ID:    iq.ID,
		Type:  IQError,
		Error: stanzaErr,
	}
}
