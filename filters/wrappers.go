package filters

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/drblury/stanzaflow/internal/engine"
	"github.com/drblury/stanzaflow/internal/runtime/logging"
	"github.com/drblury/stanzaflow/stanza"
)

// LogInfo is handed to custom log callbacks after each wrapped evaluation.
type LogInfo struct {
	// Stanza under evaluation.
	Stanza stanza.Stanza
	// Err is nil when the wrapped filter matched.
	Err error
	// Elapsed is the wall time the wrapped filter took.
	Elapsed time.Duration
}

// Log decorates a filter so every evaluation is logged through the given
// logger in the form "KIND from=X to=Y id=Z DURATION", with "-" standing
// in for absent addressing fields.
func Log(name string, logger logging.ServiceLogger) engine.Wrapper {
	if logger == nil {
		logger = logging.Nop()
	}
	return LogWith(func(info LogInfo) {
		fields := logging.LogFields{"filter": name}
		if info.Err != nil {
			fields["rejected"] = info.Err.Error()
		}
		logger.Info(formatLogLine(info), fields)
	})
}

// LogWith decorates a filter with a custom per-evaluation callback.
func LogWith(fn func(LogInfo)) engine.Wrapper {
	return engine.WrapFn(func(f engine.Filter) engine.Filter {
		return engine.Derive(f, func(ctx context.Context) (engine.Extraction, error) {
			start := time.Now()
			ext, err := f.Run(ctx)
			fn(LogInfo{
				Stanza:  engine.CurrentStanza(ctx),
				Err:     err,
				Elapsed: time.Since(start),
			})
			return ext, err
		})
	})
}

func formatLogLine(info LogInfo) string {
	return fmt.Sprintf("%s from=%s to=%s id=%s %s",
		info.Stanza.Kind(),
		jidOrDash(info.Stanza.Sender()),
		jidOrDash(info.Stanza.Recipient()),
		orDash(info.Stanza.StanzaID()),
		info.Elapsed,
	)
}

func jidOrDash(j *stanza.JID) string {
	if j == nil {
		return "-"
	}
	return j.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// MetricsWrapper counts evaluations by outcome and observes their
// duration. One wrapper owns its collectors; wrap several filters with
// the same instance to aggregate them under one name.
type MetricsWrapper struct {
	evaluations *prometheus.CounterVec
	duration    prometheus.Histogram
}

// Metrics builds a metrics wrapper registered on the default Prometheus
// registerer.
func Metrics(name string) *MetricsWrapper {
	return MetricsWith(prometheus.DefaultRegisterer, name)
}

// MetricsWith builds a metrics wrapper registered on reg.
func MetricsWith(reg prometheus.Registerer, name string) *MetricsWrapper {
	m := &MetricsWrapper{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "stanzaflow",
			Subsystem:   "filter",
			Name:        "evaluations_total",
			Help:        "Filter evaluations by outcome.",
			ConstLabels: prometheus.Labels{"filter": name},
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "stanzaflow",
			Subsystem:   "filter",
			Name:        "evaluation_duration_seconds",
			Help:        "Filter evaluation duration.",
			ConstLabels: prometheus.Labels{"filter": name},
		}),
	}
	reg.MustRegister(m.evaluations, m.duration)
	return m
}

// Wrap implements engine.Wrapper.
func (m *MetricsWrapper) Wrap(f engine.Filter) engine.Filter {
	return engine.Derive(f, func(ctx context.Context) (engine.Extraction, error) {
		start := time.Now()
		ext, err := f.Run(ctx)
		m.duration.Observe(time.Since(start).Seconds())
		if err != nil {
			m.evaluations.WithLabelValues("rejected").Inc()
		} else {
			m.evaluations.WithLabelValues("matched").Inc()
		}
		return ext, err
	})
}

// Trace decorates a filter with an OpenTelemetry span per evaluation,
// carrying the stanza addressing as attributes.
func Trace(name string) engine.Wrapper {
	return engine.WrapFn(func(f engine.Filter) engine.Filter {
		return engine.Derive(f, func(ctx context.Context) (engine.Extraction, error) {
			tracer := otel.Tracer("stanzaflow-filter")
			ctx, span := tracer.Start(ctx, name)
			defer span.End()

			st := engine.CurrentStanza(ctx)
			span.SetAttributes(
				attribute.String("stanza.kind", string(st.Kind())),
				attribute.String("stanza.id", st.StanzaID()),
				attribute.String("stanza.from", jidOrDash(st.Sender())),
				attribute.String("stanza.to", jidOrDash(st.Recipient())),
			)

			ext, err := f.Run(ctx)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
			}
			return ext, err
		})
	})
}
