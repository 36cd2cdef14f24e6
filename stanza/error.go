package stanza

// ErrorType is the retry class of a stanza error, telling the sender
// whether and how a retry could succeed (RFC 6120 §8.3.2).
type ErrorType string

const (
	// ErrorTypeAuth means retry after providing credentials.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeCancel means do not retry; the error is unrecoverable.
	ErrorTypeCancel ErrorType = "cancel"
	// ErrorTypeModify means retry after changing the data sent.
	ErrorTypeModify ErrorType = "modify"
	// ErrorTypeWait means retry after waiting; the error is temporary.
	ErrorTypeWait ErrorType = "wait"
)

// Error is the error child carried by an error-typed stanza: a retry
// class, a defined condition token, and optional human-readable text.
type Error struct {
	Type      ErrorType `json:"type"`
	Condition string    `json:"condition"`
	Text      string    `json:"text,omitempty"`
	Lang      string    `json:"lang,omitempty"`
}

// NewError builds a stanza error with English descriptive text.
func NewError(typ ErrorType, condition, text string) *Error {
	return &Error{Type: typ, Condition: condition, Text: text, Lang: "en"}
}

func (e *Error) Clone() *Error {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
