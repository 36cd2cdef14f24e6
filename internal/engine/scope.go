package engine

import (
	"context"

	"github.com/drblury/stanzaflow/stanza"
)

// The stanza under evaluation rides along the evaluation context instead
// of being threaded through every combinator. A fresh scope is installed
// per evaluation and dies with the derived context, so it can never leak
// into another evaluation.

type scopeKey struct{}

type scope struct {
	current stanza.Stanza
}

// installScope derives a context carrying the stanza under evaluation.
// Installing over an active scope means a filter chain recursively
// evaluated another chain against a different stanza; that is not
// supported and fails loudly.
func installScope(ctx context.Context, st stanza.Stanza) context.Context {
	if ctx.Value(scopeKey{}) != nil {
		panic("stanzaflow: nested stanza evaluation")
	}
	return context.WithValue(ctx, scopeKey{}, &scope{current: st})
}

// CurrentStanza returns the stanza under evaluation. Calling it outside
// a filter evaluation is a programming error.
func CurrentStanza(ctx context.Context) stanza.Stanza {
	sc, ok := ctx.Value(scopeKey{}).(*scope)
	if !ok {
		panic("stanzaflow: no stanza in scope; leaf filters only run inside an evaluation")
	}
	return sc.current
}

// ScopeActive reports whether a stanza scope is installed on ctx.
func ScopeActive(ctx context.Context) bool {
	return ctx.Value(scopeKey{}) != nil
}
