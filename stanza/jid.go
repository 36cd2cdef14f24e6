package stanza

import (
	"fmt"
	"strings"
)

// JID is an XMPP address of the form localpart@domainpart/resourcepart.
// Localpart and resourcepart are optional; the domainpart is mandatory.
type JID struct {
	Local    string `json:"local,omitempty"`
	Domain   string `json:"domain"`
	Resource string `json:"resource,omitempty"`
}

// ParseJID splits an address string into its three parts. It performs
// structural validation only; stringprep profiles are out of scope.
func ParseJID(s string) (*JID, error) {
	if s == "" {
		return nil, fmt.Errorf("stanzaflow: empty JID")
	}

	var j JID
	rest := s
	if i := strings.Index(rest, "/"); i >= 0 {
		j.Resource = rest[i+1:]
		rest = rest[:i]
		if j.Resource == "" {
			return nil, fmt.Errorf("stanzaflow: malformed JID %q: empty resourcepart", s)
		}
	}
	if i := strings.Index(rest, "@"); i >= 0 {
		j.Local = rest[:i]
		rest = rest[i+1:]
		if j.Local == "" {
			return nil, fmt.Errorf("stanzaflow: malformed JID %q: empty localpart", s)
		}
	}
	if rest == "" || strings.Contains(rest, "@") {
		return nil, fmt.Errorf("stanzaflow: malformed JID %q: bad domainpart", s)
	}
	j.Domain = rest
	return &j, nil
}

// MustParseJID is ParseJID for static addresses; it panics on malformed input.
func MustParseJID(s string) *JID {
	j, err := ParseJID(s)
	if err != nil {
		panic(err)
	}
	return j
}

func (j *JID) String() string {
	if j == nil {
		return ""
	}
	var b strings.Builder
	if j.Local != "" {
		b.WriteString(j.Local)
		b.WriteByte('@')
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteByte('/')
		b.WriteString(j.Resource)
	}
	return b.String()
}

// Bare returns the JID without its resourcepart.
func (j *JID) Bare() *JID {
	if j == nil {
		return nil
	}
	return &JID{Local: j.Local, Domain: j.Domain}
}

// Equal compares all three parts. Two nil JIDs are equal.
func (j *JID) Equal(other *JID) bool {
	if j == nil || other == nil {
		return j == other
	}
	return *j == *other
}

// Clone returns a copy so callers can mutate addresses without aliasing
// the original stanza.
func (j *JID) Clone() *JID {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}
