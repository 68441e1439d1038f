package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"caskhouse/internal/audit"
	"caskhouse/internal/audit/outbox"
	consentlogservice "caskhouse/internal/consentlog/service"
	consentlogstore "caskhouse/internal/consentlog/store"
	"caskhouse/internal/platform/config"
	"caskhouse/internal/platform/database"
	"caskhouse/internal/platform/health"
	"caskhouse/internal/platform/kafka/producer"
	platformmongo "caskhouse/internal/platform/mongo"
	platformredis "caskhouse/internal/platform/redis"
	siteconfigservice "caskhouse/internal/siteconfig/service"
	siteconfigstore "caskhouse/internal/siteconfig/store"
	trackingservice "caskhouse/internal/tracking/service"
	trackingstore "caskhouse/internal/tracking/store"
	"caskhouse/internal/workers/cleanup"
	"caskhouse/migrations"
)

// infra holds the external connections. Every backend is optional; without
// it the matching in-memory store is used.
type infra struct {
	db       *database.Pool
	redis    *platformredis.Client
	mongo    *platformmongo.Client
	producer producer.Publisher
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{producer: producer.NewNoopProducer()}

	db, err := database.New(ctx, database.DefaultConfig(cfg.Database.URL))
	if err != nil {
		return nil, err
	}
	in.db = db
	if db != nil && cfg.Database.Migrate {
		applied, err := database.Migrate(ctx, db.DB(), migrations.FS, log)
		if err != nil {
			in.close(ctx, log)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database migrated", "applied", applied)
	}

	in.redis, err = platformredis.New(ctx, cfg.Redis, platformredis.NewPoolMetrics())
	if err != nil {
		in.close(ctx, log)
		return nil, err
	}

	in.mongo, err = platformmongo.New(ctx, cfg.Mongo)
	if err != nil {
		in.close(ctx, log)
		return nil, err
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers: cfg.Kafka.Brokers,
			Acks:    cfg.Kafka.Acks,
			Retries: cfg.Kafka.Retries,
		}, log)
		if err != nil {
			in.close(ctx, log)
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		in.producer = p
	}

	log.Info("backends configured",
		"postgres", in.db != nil,
		"redis", in.redis != nil,
		"mongo", in.mongo != nil,
		"kafka", cfg.Kafka.Brokers != "",
	)
	return in, nil
}

func (in *infra) registerChecks(h *health.Handler) {
	if in.db != nil {
		h.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		h.RegisterCheck("redis", in.redis.Health)
	}
	if in.mongo != nil {
		h.RegisterCheck("mongo", in.mongo.Health)
	}
	if _, noop := in.producer.(*producer.NoopProducer); !noop {
		h.RegisterCheck("kafka", in.producer.Healthy)
	}
}

func (in *infra) close(ctx context.Context, log *slog.Logger) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if in.producer != nil {
		errs = append(errs, in.producer.Close())
	}
	if in.mongo != nil {
		errs = append(errs, in.mongo.Close(closeCtx))
	}
	if in.redis != nil {
		errs = append(errs, in.redis.Close())
	}
	if in.db != nil {
		errs = append(errs, in.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("error closing backends", "error", err)
	}
}

// auditStore returns the audit store and, when Postgres and Kafka are both
// configured, the outbox the store stages events in.
func (in *infra) auditStore() (audit.Store, *outbox.PostgresStore) {
	if in.db == nil {
		return audit.NewInMemoryStore(), nil
	}
	if _, noop := in.producer.(*producer.NoopProducer); noop {
		return audit.NewPostgresStore(in.db.DB()), nil
	}
	ob := outbox.NewPostgresStore(in.db.DB())
	return audit.NewPostgresStore(in.db.DB(), audit.WithOutbox(ob)), ob
}

func (in *infra) consentLogStore() consentlogservice.Store {
	if in.db != nil {
		return consentlogstore.NewPostgres(in.db.DB())
	}
	return consentlogstore.New()
}

func (in *infra) siteConfigStore() siteconfigservice.Store {
	if in.db != nil {
		return siteconfigstore.NewPostgres(in.db.DB())
	}
	return siteconfigstore.New()
}

func (in *infra) visitorStore() trackingservice.VisitorStore {
	if in.db != nil {
		return trackingstore.NewPostgresVisitorStore(in.db.DB())
	}
	return trackingstore.NewVisitorStore()
}

func (in *infra) eventStore(ctx context.Context) (trackingservice.EventStore, error) {
	if in.mongo == nil {
		return trackingstore.NewEventStore(), nil
	}
	s := trackingstore.NewMongoEventStore(in.mongo.Database())
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("event indexes: %w", err)
	}
	return s, nil
}

// captureStore returns the capture store and the in-memory side the cleanup
// worker has to sweep. With Redis configured, captures expire by TTL and
// memory only holds what was written while Redis was unreachable.
func (in *infra) captureStore(log *slog.Logger) (trackingservice.CaptureStore, []cleanup.Target) {
	local := trackingstore.NewCaptureStore()
	if in.redis == nil {
		return local, []cleanup.Target{{Name: "captured_fields", Store: local}}
	}
	s := trackingstore.NewFallbackCaptureStore(trackingstore.NewRedisCaptureStore(in.redis.Client), local, log)
	return s, []cleanup.Target{{Name: "captured_fields_fallback", Store: s}}
}
