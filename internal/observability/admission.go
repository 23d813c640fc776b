package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AdmissionMetrics records what the admission pipeline decided and why,
// plus the health events that matter operationally: limiter degradation
// and breaker state changes.
type AdmissionMetrics struct {
	decisions   metric.Int64Counter
	degraded    metric.Int64Counter
	transitions metric.Int64Counter
}

// NewAdmissionMetrics registers the admission instruments on the global
// meter provider.
func NewAdmissionMetrics() (*AdmissionMetrics, error) {
	meter := otel.Meter("gatekeeper/admission")

	decisions, err := meter.Int64Counter(
		"admission.decisions",
		metric.WithDescription("Admission decisions by outcome and reason"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	degraded, err := meter.Int64Counter(
		"ratelimit.store.degraded",
		metric.WithDescription("Rate limit checks served by the local fallback store"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return &AdmissionMetrics{
		decisions:   decisions,
		degraded:    degraded,
		transitions: transitions,
	}, nil
}

// RecordDecision counts one admission decision. reason is empty for
// allowed requests.
func (m *AdmissionMetrics) RecordDecision(ctx context.Context, allowed bool, reason string) {
	m.decisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.Bool("allowed", allowed),
			attribute.String("reason", reason),
		),
	)
}

// RecordDegraded counts one rate limit check that fell back to local
// counters because the distributed store was unavailable.
func (m *AdmissionMetrics) RecordDegraded(ctx context.Context) {
	m.degraded.Add(ctx, 1)
}

// RecordBreakerTransition counts one circuit breaker state change.
func (m *AdmissionMetrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	m.transitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", name),
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
