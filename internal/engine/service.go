package engine

import (
	"context"

	"github.com/drblury/stanzaflow/internal/reject"
	"github.com/drblury/stanzaflow/internal/runtime/logging"
	"github.com/drblury/stanzaflow/stanza"
)

// Service evaluates a configured filter chain against inbound stanzas.
// It is the boundary between the combinator world and the run loop: one
// call per stanza, producing either the chain's reply or a synthesized
// error stanza.
type Service struct {
	filter Filter
	logger logging.ServiceLogger
}

// NewService wraps a filter chain for evaluation. A nil logger disables
// service-level logging.
func NewService(filter Filter, logger logging.ServiceLogger) *Service {
	filter.mustBeInitialized()
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{filter: filter, logger: logger}
}

// CallStanza runs one evaluation. On success the chain's Reply is
// converted to an optional outgoing stanza. On rejection the result is
// the standard error stanza mirroring the original's addressing and id,
// or nil where the suppression rules forbid a reply.
func (s *Service) CallStanza(ctx context.Context, st stanza.Stanza) stanza.Stanza {
	ext, err := Evaluate(ctx, s.filter, st)
	if err == nil {
		return responseFromExtraction(ext)
	}

	rej := reject.From(err)
	if rej.IsCustom() {
		// A custom cause reached the end of the chain without a recover
		// handler; surface it loudly so the application adds one.
		s.logger.Error("unhandled custom rejection, returning undefined-condition", rej, logging.LogFields{
			"stanza_kind": string(st.Kind()),
			"stanza_id":   st.StanzaID(),
		})
	} else {
		s.logger.Debug("stanza rejected", logging.LogFields{
			"stanza_kind": string(st.Kind()),
			"stanza_id":   st.StanzaID(),
			"condition":   rej.Cause().Condition(),
		})
	}
	return errorResponse(st, rej.StanzaError())
}

// errorResponse synthesizes the error stanza answering the original. IQs
// are always answered; message and presence replies are suppressed when
// the original is error-typed or has no id.
func errorResponse(original stanza.Stanza, stanzaErr *stanza.Error) stanza.Stanza {
	switch st := original.(type) {
	case *stanza.IQ:
		return st.ErrorReply(stanzaErr)
	case *stanza.Message:
		if r := st.ErrorReply(stanzaErr); r != nil {
			return r
		}
		return nil
	case *stanza.Presence:
		if r := st.ErrorReply(stanzaErr); r != nil {
			return r
		}
		return nil
	default:
		return nil
	}
}
