package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/twmb/franz-go/pkg/kgo"

	"careon/internal/enrollment/store"
	"careon/internal/platform/config"
	"careon/internal/platform/kafka"
	"careon/internal/platform/postgres"
	"careon/internal/platform/redis"
)

// infra holds the optional backends. A nil field means the in-process
// fallback is used for that concern.
type infra struct {
	db    *sqlx.DB
	redis *redis.Client
	kafka *kgo.Client
}

// connect opens every configured backend, closing what was opened if a later
// one fails.
func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *infra, err error) {
	in := &infra{}
	defer func() {
		if err != nil {
			in.close(log)
		}
	}()

	if in.db, err = postgres.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if in.db != nil && cfg.Database.Migrate {
		if err := store.Migrate(ctx, in.db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return nil, err
	}

	if in.kafka, err = kafka.NewClient(cfg.Kafka); err != nil {
		return nil, err
	}
	if in.kafka != nil {
		topicCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := kafka.EnsureTopics(topicCtx, in.kafka, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
			cfg.Kafka.NotificationTopic, cfg.Kafka.ProvisioningTopic); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *infra) close(log *slog.Logger) {
	if in.kafka != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := in.kafka.Flush(flushCtx); err != nil {
			log.Warn("kafka flush failed", "error", err)
		}
		cancel()
		in.kafka.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}
}

// healthHandler reports 503 when a configured backend is unreachable.
func (in *infra) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		if in.db != nil {
			record("postgres", in.db.PingContext(ctx))
		}
		if in.redis != nil {
			record("redis", in.redis.Health(ctx))
		}
		if in.kafka != nil {
			record("kafka", in.kafka.Ping(ctx))
		}

		status, code := "ok", http.StatusOK
		if !healthy {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
	}
}
