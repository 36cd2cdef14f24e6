// Package reject implements the rejection model of the filter engine.
//
// A filter rejects a stanza to signal that its predicate or extraction
// did not hold, letting the other side of an Or chain try the stanza
// instead. As a stanza moves through a chain the rejections from failed
// branches are accumulated into a single Rejection tree; when an error
// stanza finally has to be synthesized the tree is resolved to the most
// specific cause and mapped to an XMPP stanza error condition
// (RFC 6120 §8.3.3 / XEP-0086).
package reject

import (
	"fmt"
	"strings"

	"github.com/drblury/stanzaflow/stanza"
)

// Cause is one of the defined stanza error conditions. The zero value is
// ItemNotFound, the default "this filter did not match" rejection.
type Cause uint8

const (
	ItemNotFound Cause = iota
	BadRequest
	Conflict
	FeatureNotImplemented
	Forbidden
	Gone
	InternalServerError
	JidMalformed
	NotAcceptable
	NotAllowed
	NotAuthorized
	RecipientUnavailable
	Redirect
	RegistrationRequired
	RemoteServerNotFound
	RemoteServerTimeout
	ResourceConstraint
	ServiceUnavailable
	SubscriptionRequired
	UndefinedCondition
	UnexpectedRequest

	numCauses
)

// conditions holds the wire tokens; they must match the RFC vocabulary
// exactly for interoperability.
var conditions = [numCauses]string{
	ItemNotFound:          "item-not-found",
	BadRequest:            "bad-request",
	Conflict:              "conflict",
	FeatureNotImplemented: "feature-not-implemented",
	Forbidden:             "forbidden",
	Gone:                  "gone",
	InternalServerError:   "internal-server-error",
	JidMalformed:          "jid-malformed",
	NotAcceptable:         "not-acceptable",
	NotAllowed:            "not-allowed",
	NotAuthorized:         "not-authorized",
	RecipientUnavailable:  "recipient-unavailable",
	Redirect:              "redirect",
	RegistrationRequired:  "registration-required",
	RemoteServerNotFound:  "remote-server-not-found",
	RemoteServerTimeout:   "remote-server-timeout",
	ResourceConstraint:    "resource-constraint",
	ServiceUnavailable:    "service-unavailable",
	SubscriptionRequired:  "subscription-required",
	UndefinedCondition:    "undefined-condition",
	UnexpectedRequest:     "unexpected-request",
}

// errorTypes maps each cause to its retry class.
var errorTypes = [numCauses]stanza.ErrorType{
	// Auth: retry after providing credentials.
	NotAuthorized:        stanza.ErrorTypeAuth,
	Forbidden:            stanza.ErrorTypeAuth,
	RegistrationRequired: stanza.ErrorTypeAuth,
	SubscriptionRequired: stanza.ErrorTypeAuth,

	// Cancel: do not retry.
	Conflict:              stanza.ErrorTypeCancel,
	FeatureNotImplemented: stanza.ErrorTypeCancel,
	Gone:                  stanza.ErrorTypeCancel,
	InternalServerError:   stanza.ErrorTypeCancel,
	ItemNotFound:          stanza.ErrorTypeCancel,
	NotAllowed:            stanza.ErrorTypeCancel,
	RemoteServerNotFound:  stanza.ErrorTypeCancel,
	UndefinedCondition:    stanza.ErrorTypeCancel,
	UnexpectedRequest:     stanza.ErrorTypeCancel,

	// Modify: retry after changing the data.
	BadRequest:    stanza.ErrorTypeModify,
	JidMalformed:  stanza.ErrorTypeModify,
	NotAcceptable: stanza.ErrorTypeModify,
	Redirect:      stanza.ErrorTypeModify,

	// Wait: retry after waiting.
	RecipientUnavailable: stanza.ErrorTypeWait,
	RemoteServerTimeout:  stanza.ErrorTypeWait,
	ResourceConstraint:   stanza.ErrorTypeWait,
	ServiceUnavailable:   stanza.ErrorTypeWait,
}

// Condition returns the wire token for this cause.
func (c Cause) Condition() string { return conditions[c] }

// ErrorType returns the retry class for this cause.
func (c Cause) ErrorType() stanza.ErrorType { return errorTypes[c] }

func (c Cause) String() string { return conditions[c] }

// Rejection describes why a filter chain did not produce a result. A nil
// reason is the default item-not-found leaf, so probing rejections from
// Or branches never allocates.
type Rejection struct {
	reason *node
}

type nodeKind uint8

const (
	nodeKnown nodeKind = iota
	nodeCustom
	nodeCombined
)

type node struct {
	kind        nodeKind
	known       Cause
	custom      any
	left, right *node
}

// NotFound returns the default rejection: this filter's predicate did not
// hold. It is the lowest-priority cause and is displaced by any specific
// cause when rejections are combined.
func NotFound() *Rejection {
	return &Rejection{}
}

// Known rejects with a specific cause from the defined catalog.
func Known(c Cause) *Rejection {
	if c == ItemNotFound {
		return NotFound()
	}
	return &Rejection{reason: &node{kind: nodeKnown, known: c}}
}

// Custom rejects with an opaque application cause. Unless the
// application recovers it explicitly, a custom cause surfaces as
// undefined-condition and is logged as unhandled.
//
// Passing a *Rejection is a programming error (re-rejecting a
// rejection) and panics.
func Custom(cause any) *Rejection {
	if _, ok := cause.(*Rejection); ok {
		panic("stanzaflow: reject.Custom called with a *Rejection")
	}
	return &Rejection{reason: &node{kind: nodeCustom, custom: cause}}
}

// IsNotFound reports whether this rejection is exactly the default leaf.
func (r *Rejection) IsNotFound() bool {
	return r.reason == nil
}

// Combine merges the rejections of two failed Or branches. The default
// leaf never displaces a specific cause; two specific causes are kept
// for lazy resolution.
func Combine(a, b *Rejection) *Rejection {
	switch {
	case a.reason == nil && b.reason == nil:
		return a
	case b.reason == nil:
		return a
	case a.reason == nil:
		return b
	default:
		return &Rejection{reason: &node{kind: nodeCombined, left: a.reason, right: b.reason}}
	}
}

// preferred resolves a tree to the leaf whose cause should be reported.
// item-not-found loses to anything specific; between two specific causes
// the first one wins. That tie-break is deliberate: there is no semantic
// ranking among custom causes.
func (n *node) preferred() *node {
	if n.kind != nodeCombined {
		return n
	}
	a := n.left.preferred()
	b := n.right.preferred()
	if a.isNotFoundKnown() && !b.isNotFoundKnown() {
		return b
	}
	return a
}

func (n *node) isNotFoundKnown() bool {
	return n.kind == nodeKnown && n.known == ItemNotFound
}

// Cause returns the resolved cause of this rejection. Custom causes
// report UndefinedCondition.
func (r *Rejection) Cause() Cause {
	if r.reason == nil {
		return ItemNotFound
	}
	n := r.reason.preferred()
	if n.kind == nodeCustom {
		return UndefinedCondition
	}
	return n.known
}

// IsCustom reports whether the resolved cause is an application-defined
// one the core knows nothing about. The caller should log these so the
// missing recover handler gets noticed.
func (r *Rejection) IsCustom() bool {
	return r.reason != nil && r.reason.preferred().kind == nodeCustom
}

// StanzaError converts the rejection into the stanza error to put on the
// wire, resolving combined causes by priority.
func (r *Rejection) StanzaError() *stanza.Error {
	if r.reason == nil {
		return stanza.NewError(stanza.ErrorTypeCancel, conditions[ItemNotFound], "item-not-found")
	}
	n := r.reason.preferred()
	if n.kind == nodeCustom {
		return stanza.NewError(
			stanza.ErrorTypeCancel,
			conditions[UndefinedCondition],
			fmt.Sprintf("Unhandled rejection: %v", n.custom),
		)
	}
	return stanza.NewError(n.known.ErrorType(), n.known.Condition(), n.known.Condition())
}

// Error implements the error interface so rejections can flow through
// fallible combinators as ordinary Go errors.
func (r *Rejection) Error() string {
	if r.reason == nil {
		return "rejection: item-not-found"
	}
	var b strings.Builder
	b.WriteString("rejection: ")
	r.reason.describe(&b)
	return b.String()
}

func (n *node) describe(b *strings.Builder) {
	switch n.kind {
	case nodeKnown:
		b.WriteString(n.known.Condition())
	case nodeCustom:
		fmt.Fprintf(b, "%v", n.custom)
	case nodeCombined:
		n.left.describe(b)
		b.WriteString(", ")
		n.right.describe(b)
	}
}

// Find searches the rejection tree for a custom cause of type T,
// visiting combined nodes left to right and returning the first match.
func Find[T any](r *Rejection) (T, bool) {
	var zero T
	if r == nil || r.reason == nil {
		return zero, false
	}
	return findNode[T](r.reason)
}

func findNode[T any](n *node) (T, bool) {
	var zero T
	switch n.kind {
	case nodeCustom:
		if v, ok := n.custom.(T); ok {
			return v, true
		}
	case nodeCombined:
		if v, ok := findNode[T](n.left); ok {
			return v, true
		}
		return findNode[T](n.right)
	}
	return zero, false
}

// From coerces an error produced by a fallible handler into a Rejection.
// Non-rejection errors become custom causes, matching how opaque
// application failures surface as undefined-condition.
func From(err error) *Rejection {
	if err == nil {
		return nil
	}
	if rej, ok := err.(*Rejection); ok {
		return rej
	}
	return Custom(err)
}
