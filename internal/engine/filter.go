// Package engine implements the filter composition engine: the Filter
// value, its combinators, the per-evaluation stanza scope, and the
// evaluation service that turns a filter chain plus an inbound stanza
// into an optional outgoing stanza.
package engine

import (
	"context"

	"github.com/drblury/stanzaflow/internal/reject"
	"github.com/drblury/stanzaflow/stanza"
)

// Extraction is the ordered, flattened list of values a filter chain has
// extracted so far. The empty extraction is the unit: combining it with
// any other extraction yields that extraction unchanged, which is what
// makes And associative.
type Extraction []any

// One wraps a single extracted value.
func One(v any) Extraction { return Extraction{v} }

// Filter is a stateless, copyable description of one pipeline step.
// Composing filters produces new Filter values; evaluation happens once
// per inbound stanza, driven by the Service.
//
// Filters that can never fail are tracked with a runtime flag so Or
// chains skip branches that are provably unreachable.
type Filter struct {
	run        func(ctx context.Context) (Extraction, error)
	infallible bool
}

// FilterFn builds a leaf filter from a predicate/extraction function.
// The function receives the stanza under evaluation from the ambient
// scope; failures are reported as rejections.
func FilterFn(fn func(ctx context.Context, st stanza.Stanza) (Extraction, error)) Filter {
	return Filter{
		run: func(ctx context.Context) (Extraction, error) {
			return fn(ctx, CurrentStanza(ctx))
		},
	}
}

// InfallibleFn builds a leaf filter that always succeeds.
func InfallibleFn(fn func(ctx context.Context, st stanza.Stanza) Extraction) Filter {
	return Filter{
		infallible: true,
		run: func(ctx context.Context) (Extraction, error) {
			return fn(ctx, CurrentStanza(ctx)), nil
		},
	}
}

// Infallible reports whether this filter can never reject.
func (f Filter) Infallible() bool { return f.infallible }

func (f Filter) mustBeInitialized() {
	if f.run == nil {
		panic("stanzaflow: zero Filter used; build filters with FilterFn or the filters package")
	}
}

// And sequences two filters: evaluate f, and on success evaluate other
// against the same stanza, concatenating the extractions. The first
// failure short-circuits; other is never evaluated after f fails.
func (f Filter) And(other Filter) Filter {
	f.mustBeInitialized()
	other.mustBeInitialized()
	return Filter{
		infallible: f.infallible && other.infallible,
		run: func(ctx context.Context) (Extraction, error) {
			first, err := f.run(ctx)
			if err != nil {
				return nil, err
			}
			second, err := other.run(ctx)
			if err != nil {
				return nil, err
			}
			if len(first) == 0 {
				return second, nil
			}
			if len(second) == 0 {
				return first, nil
			}
			combined := make(Extraction, 0, len(first)+len(second))
			combined = append(combined, first...)
			return append(combined, second...), nil
		},
	}
}

// Or tries f, and on rejection tries other against the same original
// stanza. When both sides fail their rejections are merged so the most
// specific cause survives. If f is infallible the alternative is
// unreachable and is eliminated entirely.
func (f Filter) Or(other Filter) Filter {
	f.mustBeInitialized()
	other.mustBeInitialized()
	if f.infallible {
		return f
	}
	return Filter{
		infallible: other.infallible,
		run: func(ctx context.Context) (Extraction, error) {
			ext, err := f.run(ctx)
			if err == nil {
				return ext, nil
			}
			ext2, err2 := other.run(ctx)
			if err2 == nil {
				return ext2, nil
			}
			return nil, reject.Combine(reject.From(err), reject.From(err2))
		},
	}
}

// Map transforms a successful extraction. The extracted values are
// spread as the function's arguments; the result becomes the new
// extraction. A returned Extraction is spliced in place, which lets a
// mapper yield several values (or none).
func (f Filter) Map(fn func(args ...any) any) Filter {
	f.mustBeInitialized()
	return Filter{
		infallible: f.infallible,
		run: func(ctx context.Context) (Extraction, error) {
			ext, err := f.run(ctx)
			if err != nil {
				return nil, err
			}
			return splice(fn(ext...)), nil
		},
	}
}

// AndThen is Map for fallible transformations: the function may reject,
// and its rejection becomes the chain's failure.
func (f Filter) AndThen(fn func(ctx context.Context, args ...any) (any, error)) Filter {
	f.mustBeInitialized()
	return Filter{
		run: func(ctx context.Context) (Extraction, error) {
			ext, err := f.run(ctx)
			if err != nil {
				return nil, err
			}
			v, err := fn(ctx, ext...)
			if err != nil {
				return nil, reject.From(err)
			}
			return splice(v), nil
		},
	}
}

// OrElse invokes fn with the failure cause to produce a fallback
// outcome, which may itself succeed or fail.
func (f Filter) OrElse(fn func(ctx context.Context, rej *reject.Rejection) (Extraction, error)) Filter {
	f.mustBeInitialized()
	if f.infallible {
		return f
	}
	return Filter{
		run: func(ctx context.Context) (Extraction, error) {
			ext, err := f.run(ctx)
			if err == nil {
				return ext, nil
			}
			ext, err = fn(ctx, reject.From(err))
			if err != nil {
				return nil, reject.From(err)
			}
			return ext, nil
		},
	}
}

// Recover converts any unrecovered failure into a guaranteed Reply. The
// handler cannot fail by construction, so the resulting filter is
// infallible.
func (f Filter) Recover(fn func(ctx context.Context, rej *reject.Rejection) Reply) Filter {
	f.mustBeInitialized()
	if f.infallible {
		return f
	}
	return Filter{
		infallible: true,
		run: func(ctx context.Context) (Extraction, error) {
			ext, err := f.run(ctx)
			if err == nil {
				return ext, nil
			}
			return One(fn(ctx, reject.From(err))), nil
		},
	}
}

// Wrapper decorates a filter without changing its extraction; see
// filters.Log, filters.Metrics, and filters.Trace.
type Wrapper interface {
	Wrap(Filter) Filter
}

// With applies a cross-cutting decorator around the filter.
func (f Filter) With(w Wrapper) Filter {
	f.mustBeInitialized()
	return w.Wrap(f)
}

// WrapFn turns a plain function into a Wrapper.
type WrapFn func(Filter) Filter

func (w WrapFn) Wrap(f Filter) Filter { return w(f) }

// Derive builds a decorated filter that shares f's failure behaviour;
// wrapper implementations use it to keep the infallibility flag honest.
func Derive(f Filter, run func(ctx context.Context) (Extraction, error)) Filter {
	return Filter{infallible: f.infallible, run: run}
}

// Run evaluates the filter on an already-scoped context. Only wrapper
// implementations should need this.
func (f Filter) Run(ctx context.Context) (Extraction, error) {
	f.mustBeInitialized()
	return f.run(ctx)
}

// Evaluate runs the filter once against st under a fresh stanza scope.
func Evaluate(ctx context.Context, f Filter, st stanza.Stanza) (Extraction, error) {
	f.mustBeInitialized()
	return f.run(installScope(ctx, st))
}

func splice(v any) Extraction {
	if ext, ok := v.(Extraction); ok {
		return ext
	}
	return Extraction{v}
}
