// Package stanzaflow is a composable routing layer for XMPP component
// stanzas. Filters are small matchers that extract values and compose with
// And, Or, Map, and Recover into a chain; a Service evaluates the chain
// once per inbound stanza and publishes whatever reply the chain produces.
// The stanza stream itself arrives over a pluggable transport (in-memory
// Go channels, NATS Core, or NATS JetStream) built on Watermill.
//
// A filter either matches a stanza, extracting zero or more values for
// the next combinator, or rejects it with a cause from the standard
// stanza-error catalog. When the whole chain rejects, the Service
// synthesises the appropriate error stanza: iqs are always answered,
// messages and presence only when they carry an id and are not themselves
// error-typed. Rejections combine across Or branches so the most specific
// cause wins over the default item-not-found.
//
// # Quick start
//
// Fill a Config, compose a chain from the filters package, create a
// Service, and call Start:
//
//	chain := filters.Message().
//		And(filters.Echo()).
//		With(filters.Log("echo", logger))
//
//	svc := stanzaflow.NewService(&stanzaflow.Config{Transport: "channel"},
//		chain, logger, ctx, stanzaflow.ServiceDependencies{})
//	svc.Start(ctx)
//
// Import a transport package for its side-effect registration:
//
//	_ "github.com/drblury/stanzaflow/transport/channel"
//
// # Request/response correlation
//
// Service.Request sends an iq and blocks until the response with the
// matching id arrives; responses to pending requests bypass the filter
// chain entirely. Inside a chain, stanzaflow.Send and stanzaflow.Request
// reach the same correlation context through the evaluation's ctx.
//
// # Middleware
//
// The default middleware chain applies correlation IDs, stanza logging,
// OpenTelemetry tracing, Prometheus metrics, retry with exponential
// backoff, poison queue forwarding for undecodable payloads, and panic
// recovery. Custom middleware can be added via
// ServiceDependencies.Middlewares; per-filter decoration is available
// through filters.Log, filters.Metrics, and filters.Trace.
package stanzaflow
