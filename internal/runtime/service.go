package runtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"

	"github.com/drblury/stanzaflow/internal/correlate"
	"github.com/drblury/stanzaflow/internal/engine"
	"github.com/drblury/stanzaflow/internal/reject"
	configpkg "github.com/drblury/stanzaflow/internal/runtime/config"
	errspkg "github.com/drblury/stanzaflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/stanzaflow/internal/runtime/logging"
	"github.com/drblury/stanzaflow/stanza"
	transportpkg "github.com/drblury/stanzaflow/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

var timeAfter = time.After

// UnprocessableStanzaError wraps inbound payloads that failed to decode.
// The poison queue middleware matches on this type.
type UnprocessableStanzaError struct {
	payload string
	err     error
}

func (e *UnprocessableStanzaError) Error() string {
	return "unprocessable stanza: " + e.payload + " error: " + e.err.Error()
}

func (e *UnprocessableStanzaError) Unwrap() error { return e.err }

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to use the defaults.
type ServiceDependencies struct {
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
	TransportRegistry         *transportpkg.Registry   // Defaults to transport.DefaultRegistry.
	TransportBuilder          transportpkg.Builder     // Bypasses the registry entirely when set.
}

// Service wires a Watermill router, a transport, and the stanza filter
// engine. Stanzas arriving on the inbound topic flow through the filter
// chain; replies and outbound sends are published on the outbound topic.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	engine *engine.Service
	corr   *correlate.Context

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex

	outboundOnce sync.Once
}

// NewService constructs a Service evaluating the supplied filter. The
// configuration is validated and defaulted; construction panics when the
// transport cannot be built, mirroring the all-or-nothing startup a
// component binary wants.
func NewService(conf *configpkg.Config, filter engine.Filter, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) *Service {
	if log == nil {
		log = loggingpkg.Nop()
	}
	if err := configpkg.ValidateConfig(conf); err != nil {
		panic(fmt.Sprintf("invalid config: %v", err))
	}
	normalized := conf.WithDefaults()
	conf = &normalized

	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating stanza service",
		loggingpkg.LogFields{
			"transport": conf.Transport,
			"config":    conf,
		})

	s := &Service{
		Conf:   conf,
		Logger: log,
		engine: engine.NewService(filter, log),
		corr:   correlate.New(conf.OutboundBuffer),
	}

	registry := deps.TransportRegistry
	if registry == nil {
		registry = transportpkg.DefaultRegistry
	}

	var tr transportpkg.Transport
	var err error
	if deps.TransportBuilder != nil {
		tr, err = deps.TransportBuilder(ctx, conf, wmLogger)
	} else {
		tr, err = registry.Build(ctx, conf, wmLogger)
	}
	if err != nil {
		panic(err)
	}

	s.publisher = tr.Publisher
	s.subscriber = tr.Subscriber

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		panic(err)
	}

	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	s.registerConfiguredMiddlewares(deps)

	s.router.AddHandler(
		"stanza_pipeline",
		conf.InboundTopic,
		s.subscriber,
		conf.OutboundTopic,
		s.publisher,
		s.handleInbound,
	)

	return s
}

// Start runs the service until the provided context is cancelled. The
// outbound queue pump and any registered HTTP servers are started
// alongside the router.
func (s *Service) Start(ctx context.Context) error {
	s.startHTTPServers()
	s.startOutboundPump(ctx)
	return routerRun(s.router, ctx)
}

// Close shuts down the correlation context and the router. Pending
// requests observe ErrClosed.
func (s *Service) Close() error {
	s.corr.Close()
	return s.router.Close()
}

// handleInbound decodes one transport message and runs it through the
// filter chain. A nil reply (sink, suppressed error) publishes nothing.
func (s *Service) handleInbound(msg *message.Message) ([]*message.Message, error) {
	st, err := transportpkg.Decode(msg)
	if err != nil {
		return nil, &UnprocessableStanzaError{payload: string(msg.Payload), err: err}
	}

	// A stanza answering a pending request is delivered straight to the
	// waiting requester instead of the filter chain.
	if !s.Conf.DisableCorrelation {
		if id := st.StanzaID(); id != "" {
			if pending, ok := s.corr.TakePending(id); ok {
				pending <- st
				return nil, nil
			}
		}
	}

	ctx := correlate.Install(msg.Context(), s.corr)
	reply := s.engine.CallStanza(ctx, st)
	if reply == nil {
		return nil, nil
	}

	out, err := transportpkg.Encode(reply)
	if err != nil {
		s.Logger.Error("Failed to encode reply", err, loggingpkg.LogFields{
			"stanza_kind": string(reply.Kind()),
			"stanza_id":   reply.StanzaID(),
		})
		return nil, nil
	}

	return []*message.Message{out}, nil
}

// startOutboundPump publishes stanzas queued by Send and Request onto the
// outbound topic until the context is cancelled or the queue is closed.
func (s *Service) startOutboundPump(ctx context.Context) {
	s.outboundOnce.Do(func() {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case st, ok := <-s.corr.Outbound():
					if !ok {
						return
					}
					msg, err := transportpkg.Encode(st)
					if err != nil {
						s.Logger.Error("Failed to encode outbound stanza", err, nil)
						continue
					}
					if err := s.publisher.Publish(s.Conf.OutboundTopic, msg); err != nil {
						s.Logger.Error("Failed to publish outbound stanza", err, loggingpkg.LogFields{
							"stanza_id": st.StanzaID(),
						})
					}
				}
			}
		}()
	})
}

// Send queues a stanza for delivery without expecting a response.
func (s *Service) Send(st stanza.Stanza) error {
	return s.corr.Send(st)
}

// Request sends a stanza and blocks until the response with the matching
// id arrives, the configured request timeout elapses, or ctx is done. An
// empty id is assigned automatically before sending. Timeouts surface as
// a remote-server-timeout rejection.
//
// Request must not be called from inside a filter running on the inbound
// pipeline: stanzas are evaluated one at a time, so blocking there would
// prevent the response from ever being processed. Spawn a goroutine or
// call Request from outside the chain.
func (s *Service) Request(ctx context.Context, st stanza.Stanza) (stanza.Stanza, error) {
	ch, err := s.corr.Request(st)
	if err != nil {
		return nil, err
	}

	timer := timeAfter(s.Conf.RequestTimeout)
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errspkg.ErrTransportClosed
		}
		return resp, nil
	case <-timer:
		s.corr.TakePending(st.StanzaID())
		return nil, reject.Known(reject.RemoteServerTimeout)
	case <-ctx.Done():
		s.corr.TakePending(st.StanzaID())
		return nil, ctx.Err()
	}
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			panic(fmt.Sprintf("failed to register middleware %s: %v", name, err))
		}
	}
}

// RegisterHTTPHandler mounts a handler on the HTTP server for the given
// port. Servers are started lazily by Start.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}

	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}

	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("Failed to start HTTP server", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
