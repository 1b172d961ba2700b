// Package kafka publishes enrollment notifications and account provisioning
// requests as JSON records keyed by application id.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"careon/internal/enrollment/models"
	"careon/pkg/platform/circuit"
	"careon/pkg/platform/sentinel"
)

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

const (
	headerEventType       = "event-type"
	defaultProduceTimeout = 5 * time.Second
)

// Publisher implements ports.Notifier and ports.AccountProvisioner on top of
// a Kafka producer. A circuit breaker short-circuits produces while the
// brokers are unreachable.
type Publisher struct {
	producer          Producer
	notificationTopic string
	provisioningTopic string
	timeout           time.Duration
	breaker           *circuit.Breaker
	propagator        propagation.TextMapPropagator
	tracer            trace.Tracer
	logger            *slog.Logger
	now               func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithProduceTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithPropagator(prop propagation.TextMapPropagator) Option {
	return func(p *Publisher) {
		p.propagator = prop
	}
}

func New(producer Producer, notificationTopic, provisioningTopic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer:          producer,
		notificationTopic: notificationTopic,
		provisioningTopic: provisioningTopic,
		timeout:           defaultProduceTimeout,
		breaker:           circuit.New("kafka"),
		propagator:        otel.GetTextMapPropagator(),
		tracer:            otel.Tracer("careon/enrollment/kafka"),
		logger:            slog.Default(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Notify publishes n to the notification topic.
func (p *Publisher) Notify(ctx context.Context, n models.Notification) error {
	return p.publish(ctx, p.notificationTopic, string(n.Type), n.ApplicationID.String(), n)
}

// ProvisioningRequest asks the merchant account system to open an account
// for an approved application.
type ProvisioningRequest struct {
	ApplicationID  string   `json:"application_id"`
	UserID         string   `json:"user_id"`
	BusinessType   string   `json:"business_type"`
	BusinessName   string   `json:"business_name"`
	BusinessNumber string   `json:"business_number"`
	Representative string   `json:"representative_name"`
	PhoneNumber    string   `json:"phone_number"`
	BankName       string   `json:"bank_name,omitempty"`
	AccountHolder  string   `json:"account_holder,omitempty"`
	AccountNumber  string   `json:"account_number,omitempty"`
	CardNetworks   []string `json:"card_networks,omitempty"`
	ApprovedAt     string   `json:"approved_at,omitempty"`
	RequestedAt    string   `json:"requested_at"`
}

func provisioningRequestFor(app *models.Application, now time.Time) ProvisioningRequest {
	req := ProvisioningRequest{
		ApplicationID:  app.ID().String(),
		UserID:         app.UserID().String(),
		BusinessType:   string(app.Business().Type),
		BusinessName:   app.Business().Name,
		BusinessNumber: app.Business().Number,
		Representative: app.Representative().Name,
		PhoneNumber:    app.Representative().PhoneNumber,
		BankName:       app.Settlement().BankName,
		AccountHolder:  app.Settlement().AccountHolder,
		AccountNumber:  app.Settlement().AccountNumber,
		RequestedAt:    now.UTC().Format(time.RFC3339),
	}
	for _, cn := range app.Agreements().CardNetworks {
		req.CardNetworks = append(req.CardNetworks, string(cn))
	}
	if at := app.ReviewedAt(); at != nil {
		req.ApprovedAt = at.UTC().Format(time.RFC3339)
	}
	return req
}

// Provision publishes a provisioning request for app.
func (p *Publisher) Provision(ctx context.Context, app *models.Application) error {
	return p.publish(ctx, p.provisioningTopic, "account.provision", app.ID().String(), provisioningRequestFor(app, p.now()))
}

func (p *Publisher) publish(ctx context.Context, topic, eventType, key string, payload any) (err error) {
	ctx, span := p.tracer.Start(ctx, "kafka.produce", trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", topic),
			attribute.String("messaging.kafka.message.key", key),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Encode before Allow: a bad payload must not hold the half-open probe.
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", eventType, err)
	}
	if !p.breaker.Allow() {
		return fmt.Errorf("kafka circuit open for %s: %w", topic, sentinel.ErrUnavailable)
	}
	record := &kgo.Record{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: p.headers(ctx, eventType),
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if p.breaker.RecordFailure() {
			p.logger.WarnContext(ctx, "kafka circuit opened", "topic", topic, "error", err)
		}
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	p.breaker.RecordSuccess()
	return nil
}

func (p *Publisher) headers(ctx context.Context, eventType string) []kgo.RecordHeader {
	carrier := propagation.MapCarrier{}
	p.propagator.Inject(ctx, carrier)

	headers := make([]kgo.RecordHeader, 0, len(carrier)+1)
	headers = append(headers, kgo.RecordHeader{Key: headerEventType, Value: []byte(eventType)})
	for _, k := range carrier.Keys() {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(carrier.Get(k))})
	}
	return headers
}
