package engine

import (
	"fmt"
	"reflect"

	"github.com/drblury/stanzaflow/stanza"
)

// Reply is a value a terminated filter chain produces: something
// convertible into an optional outgoing stanza. IntoResponse returning
// nil means "send nothing".
type Reply interface {
	IntoResponse() stanza.Stanza
}

type nothing struct{}

func (nothing) IntoResponse() stanza.Stanza { return nil }

// Nothing is the sink reply: the chain matched but no stanza goes out.
func Nothing() Reply { return nothing{} }

// ReplyStanza wraps a stanza as a Reply.
func ReplyStanza(st stanza.Stanza) Reply { return stanzaReply{st} }

type stanzaReply struct {
	st stanza.Stanza
}

func (r stanzaReply) IntoResponse() stanza.Stanza {
	if isNil(r.st) {
		return nil
	}
	return r.st
}

// intoResponse converts one terminal extraction value to an optional
// stanza. Stanza values and Reply values are accepted; anything else is
// an architectural misuse reported by the caller.
func intoResponse(v any) (stanza.Stanza, bool) {
	switch r := v.(type) {
	case nil:
		return nil, true
	case Reply:
		return r.IntoResponse(), true
	case stanza.Stanza:
		if isNil(r) {
			return nil, true
		}
		return r, true
	default:
		return nil, false
	}
}

// responseFromExtraction converts the final extraction of a successful
// evaluation. A chain that terminates with anything other than zero or
// one Reply-convertible value was composed wrong, and that is a
// programming error, not a runtime condition.
func responseFromExtraction(ext Extraction) stanza.Stanza {
	switch len(ext) {
	case 0:
		return nil
	case 1:
		st, ok := intoResponse(ext[0])
		if !ok {
			panic(fmt.Sprintf("stanzaflow: filter chain terminated with %T, which is not a Reply", ext[0]))
		}
		return st
	default:
		panic(fmt.Sprintf("stanzaflow: filter chain terminated with %d extracted values; end chains with Map or Recover", len(ext)))
	}
}

// isNil catches typed-nil stanza pointers hiding inside the interface.
func isNil(st stanza.Stanza) bool {
	if st == nil {
		return true
	}
	v := reflect.ValueOf(st)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
