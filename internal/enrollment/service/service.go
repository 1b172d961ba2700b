// Package service holds the enrollment use cases. Each use case loads the
// aggregate through ports.Repository, enforces authorization and cross-record
// rules, calls exactly one aggregate method and persists the result.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"careon/internal/enrollment/metrics"
	"careon/internal/enrollment/models"
	"careon/internal/enrollment/ports"
	id "careon/pkg/domain"
	dErrors "careon/pkg/domain-errors"
	"careon/pkg/platform/sentinel"
	"careon/pkg/requestcontext"
)

const defaultSideEffectTimeout = 10 * time.Second

// Service orchestrates enrollment use cases.
type Service struct {
	repo        ports.Repository
	notifier    ports.Notifier
	provisioner ports.AccountProvisioner
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer

	sideEffectTimeout time.Duration
	pending           sync.WaitGroup
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAccountProvisioner(p ports.AccountProvisioner) Option {
	return func(s *Service) {
		s.provisioner = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSideEffectTimeout bounds each notification/provisioning attempt.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sideEffectTimeout = d
		}
	}
}

// New constructs a Service. Notifier and provisioner are optional.
func New(repo ports.Repository, opts ...Option) *Service {
	s := &Service{
		repo:              repo,
		logger:            slog.Default(),
		tracer:            otel.Tracer("careon/enrollment"),
		sideEffectTimeout: defaultSideEffectTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// startUseCase opens a span and returns the finisher that records outcome
// metrics and span status.
func (s *Service) startUseCase(ctx context.Context, name string, appID id.ApplicationID) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "enrollment."+name)
	if !appID.IsNil() {
		span.SetAttributes(attribute.String("enrollment.id", appID.String()))
	}
	return ctx, func(errp *error) {
		defer span.End()
		s.metrics.ObserveUseCase(name, start)
		if errp == nil || *errp == nil {
			return
		}
		code := dErrors.CodeOf(*errp)
		span.SetAttributes(attribute.String("error.code", string(code)))
		if code == dErrors.CodeInternal {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, "internal error")
			return
		}
		s.metrics.IncDomainRejection(string(code))
	}
}

func (s *Service) load(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, appID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "enrollment application not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollment application")
	}
	return app, nil
}

func (s *Service) save(ctx context.Context, app *models.Application) (*models.Application, error) {
	saved, err := s.repo.Save(ctx, app)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeDuplicateBusinessNumber, "business number is already registered to another application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save enrollment application")
	}
	return saved, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append([]any{
		"event", event,
		"log_type", "audit",
		"actor_id", requestcontext.UserID(ctx).String(),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, event, args...)
}

// Wait blocks until in-flight side effects finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
