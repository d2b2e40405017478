package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's counters. Instruments come from the global
// meter provider, so a disabled Telemetry yields cheap no-op counters.
type Metrics struct {
	logins    metric.Int64Counter
	chats     metric.Int64Counter
	quotes    metric.Int64Counter
	registers metric.Int64Counter
}

// NewMetrics creates the service counters.
func NewMetrics(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("observability: logins counter: %w", err)
	}
	registers, err := meter.Int64Counter("auth.registrations",
		metric.WithDescription("Registration attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("observability: registrations counter: %w", err)
	}
	chats, err := meter.Int64Counter("llm.chat_requests",
		metric.WithDescription("Chat proxy requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("observability: chats counter: %w", err)
	}
	quotes, err := meter.Int64Counter("llm.quote_requests",
		metric.WithDescription("Quote requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("observability: quotes counter: %w", err)
	}

	return &Metrics{logins: logins, chats: chats, quotes: quotes, registers: registers}, nil
}

func outcome(ok bool) attribute.KeyValue {
	if ok {
		return attribute.String("outcome", "success")
	}
	return attribute.String("outcome", "failure")
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(ctx context.Context, ok bool) {
	m.logins.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(ctx context.Context, ok bool) {
	m.registers.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

// RecordChat counts a chat proxy request.
func (m *Metrics) RecordChat(ctx context.Context, ok bool) {
	m.chats.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}

// RecordQuote counts a quote request.
func (m *Metrics) RecordQuote(ctx context.Context, ok bool) {
	m.quotes.Add(ctx, 1, metric.WithAttributes(outcome(ok)))
}
