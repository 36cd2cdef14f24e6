package stanzaflow

import (
	"context"

	"github.com/drblury/stanzaflow/internal/correlate"
	enginepkg "github.com/drblury/stanzaflow/internal/engine"
	rejectpkg "github.com/drblury/stanzaflow/internal/reject"
	runtimepkg "github.com/drblury/stanzaflow/internal/runtime"
	configpkg "github.com/drblury/stanzaflow/internal/runtime/config"
	errspkg "github.com/drblury/stanzaflow/internal/runtime/errors"
	idspkg "github.com/drblury/stanzaflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/stanzaflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/stanzaflow/internal/runtime/logging"
	"github.com/drblury/stanzaflow/stanza"
	transportpkg "github.com/drblury/stanzaflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	// Filter composition
	Filter     = enginepkg.Filter
	Extraction = enginepkg.Extraction
	Reply      = enginepkg.Reply
	Wrapper    = enginepkg.Wrapper
	WrapFn     = enginepkg.WrapFn

	// Rejections
	Rejection = rejectpkg.Rejection
	Cause     = rejectpkg.Cause

	// Stanza model (the stanza package holds the full surface)
	Stanza = stanza.Stanza
	JID    = stanza.JID

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig  = runtimepkg.RetryMiddlewareConfig

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	UnprocessableStanzaError = runtimepkg.UnprocessableStanzaError
	ConfigValidationError    = errspkg.ConfigValidationError

	// Transport layer
	Transport             = transportpkg.Transport
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

// Known rejection causes, with their wire condition and retry class.
const (
	BadRequest            = rejectpkg.BadRequest
	Conflict              = rejectpkg.Conflict
	FeatureNotImplemented = rejectpkg.FeatureNotImplemented
	Forbidden             = rejectpkg.Forbidden
	Gone                  = rejectpkg.Gone
	InternalServerError   = rejectpkg.InternalServerError
	ItemNotFound          = rejectpkg.ItemNotFound
	JidMalformed          = rejectpkg.JidMalformed
	NotAcceptable         = rejectpkg.NotAcceptable
	NotAllowed            = rejectpkg.NotAllowed
	NotAuthorized         = rejectpkg.NotAuthorized
	RecipientUnavailable  = rejectpkg.RecipientUnavailable
	Redirect              = rejectpkg.Redirect
	RegistrationRequired  = rejectpkg.RegistrationRequired
	RemoteServerNotFound  = rejectpkg.RemoteServerNotFound
	RemoteServerTimeout   = rejectpkg.RemoteServerTimeout
	ResourceConstraint    = rejectpkg.ResourceConstraint
	ServiceUnavailable    = rejectpkg.ServiceUnavailable
	SubscriptionRequired  = rejectpkg.SubscriptionRequired
	UndefinedCondition    = rejectpkg.UndefinedCondition
	UnexpectedRequest     = rejectpkg.UnexpectedRequest
)

var (
	NewService     = runtimepkg.NewService
	ValidateConfig = configpkg.ValidateConfig

	// Filter constructors and evaluation
	FilterFn     = enginepkg.FilterFn
	InfallibleFn = enginepkg.InfallibleFn
	One          = enginepkg.One
	Evaluate     = enginepkg.Evaluate

	// Replies
	Nothing     = enginepkg.Nothing
	ReplyStanza = enginepkg.ReplyStanza

	// The evaluation service without a transport; feed it stanzas directly.
	NewFilterService = enginepkg.NewService

	// Ambient stanza access for leaf filters
	CurrentStanza = enginepkg.CurrentStanza

	// Rejection constructors
	Reject         = rejectpkg.Known
	RejectNotFound = rejectpkg.NotFound
	RejectCustom   = rejectpkg.Custom
	RejectionFrom  = rejectpkg.From

	// Middleware chain pieces for ServiceDependencies.Middlewares
	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogStanzasMiddleware    = runtimepkg.LogStanzasMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	// Logging constructors
	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger
	NewWatermillAdapter       = loggingpkg.NewWatermillAdapter
	NopLogger                 = loggingpkg.Nop

	// Stanza id generation (monotonic ULIDs)
	NewStanzaID = idspkg.NewStanzaID

	// Transport registry; import a backend package to register it:
	//   _ "github.com/drblury/stanzaflow/transport/channel"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
	EncodeStanza             = transportpkg.Encode
	DecodeStanza             = transportpkg.Decode

	// JSON codec used by the stanza envelope
	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrFilterRequired    = errspkg.ErrFilterRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrTransportClosed   = errspkg.ErrTransportClosed
	ErrServiceNotRunning = errspkg.ErrServiceNotRunning
)

// FindRejection walks the rejection tree and returns the first custom
// cause of type T.
func FindRejection[T any](r *Rejection) (T, bool) {
	return rejectpkg.Find[T](r)
}

// Send queues a stanza on the outbound channel of the evaluation this ctx
// belongs to. It only works inside a filter run by a Service.
func Send(ctx context.Context, st stanza.Stanza) error {
	c, ok := correlate.FromContext(ctx)
	if !ok {
		return ErrServiceNotRunning
	}
	return c.Send(st)
}

// Request queues a stanza and returns the channel the matching response
// will be delivered on. An absent id is assigned before sending. The
// channel is buffered; receive from it outside the filter chain (for
// example in a goroutine), because inbound stanzas are evaluated one at
// a time.
func Request(ctx context.Context, st stanza.Stanza) (<-chan stanza.Stanza, error) {
	c, ok := correlate.FromContext(ctx)
	if !ok {
		return nil, ErrServiceNotRunning
	}
	return c.Request(st)
}
