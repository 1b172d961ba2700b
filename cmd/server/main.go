package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	kafkaadapter "careon/internal/enrollment/adapters/kafka"
	"careon/internal/enrollment/adapters/logsink"
	"careon/internal/enrollment/draft"
	"careon/internal/enrollment/handler"
	enrollmentmetrics "careon/internal/enrollment/metrics"
	"careon/internal/enrollment/ports"
	"careon/internal/enrollment/service"
	"careon/internal/enrollment/steps"
	"careon/internal/enrollment/store"
	jwttoken "careon/internal/jwt_token"
	"careon/internal/platform/config"
	"careon/internal/platform/httpserver"
	"careon/internal/platform/logger"
	"careon/internal/platform/metrics"
	authmw "careon/pkg/platform/middleware/auth"
	"careon/pkg/platform/middleware/metadata"
	"careon/pkg/platform/middleware/request"
	"careon/pkg/platform/middleware/requesttime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	enrollMetrics := enrollmentmetrics.New(reg)

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	var repo ports.Repository = store.NewInMemory()
	if in.db != nil {
		repo = store.NewPostgres(in.db)
	}

	var draftStore draft.Store = draft.NewInMemoryStore(cfg.Draft.TTL)
	if in.redis != nil {
		draftStore = draft.NewRedisStore(in.redis.Client, cfg.Draft.TTL)
	}

	var (
		notifier    ports.Notifier           = logsink.NewNotifier(log)
		provisioner ports.AccountProvisioner = logsink.NewProvisioner(log)
	)
	if in.kafka != nil {
		pub := kafkaadapter.New(in.kafka, cfg.Kafka.NotificationTopic, cfg.Kafka.ProvisioningTopic,
			kafkaadapter.WithLogger(log),
			kafkaadapter.WithProduceTimeout(cfg.Kafka.ProduceTimeout),
		)
		notifier, provisioner = pub, pub
	}

	enrollments := service.New(repo,
		service.WithLogger(log),
		service.WithMetrics(enrollMetrics),
		service.WithNotifier(notifier),
		service.WithAccountProvisioner(provisioner),
		service.WithSideEffectTimeout(cfg.Draft.SideEffectWait),
	)
	drafts := draft.NewService(draftStore, steps.Default,
		draft.WithLogger(log),
		draft.WithMetrics(enrollMetrics),
		draft.WithDebounceDelay(cfg.Draft.DebounceDelay),
	)

	validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience))

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Trace(otel.Tracer("careon/http")))
	r.Use(request.Logger(log))
	r.Use(request.Latency(httpMetrics))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", in.healthHandler())
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.Server.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		handler.New(enrollments, drafts, steps.Default, log).Mount(r,
			authmw.RequireAuth(validator, log),
			authmw.RequireAdmin(log),
		)
	})

	srv := httpserver.New(cfg.Server, r)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting careon enrollment service",
			"addr", cfg.Server.Addr,
			"environment", cfg.Environment,
			"postgres", in.db != nil,
			"redis", in.redis != nil,
			"kafka", in.kafka != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := drafts.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("flush drafts: %w", err))
	}
	if err := enrollments.Wait(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain side effects: %w", err))
	}
	return errors.Join(errs...)
}
