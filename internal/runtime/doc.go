// Package runtime wires the stanza filter engine to a transport. It owns
// the Watermill router, the middleware chain, and the correlation context
// that connects request filters to the responses arriving later.
package runtime
