package main

import (
	"context"
	"fmt"
	"log/slog"

	"caskhouse/internal/audit"
	"caskhouse/internal/audit/outbox"
	outboxmetrics "caskhouse/internal/audit/outbox/metrics"
	outboxworker "caskhouse/internal/audit/outbox/worker"
	consentloghandler "caskhouse/internal/consentlog/handler"
	consentlogmetrics "caskhouse/internal/consentlog/metrics"
	consentlogservice "caskhouse/internal/consentlog/service"
	gdprhandler "caskhouse/internal/gdpr/handler"
	gdprmetrics "caskhouse/internal/gdpr/metrics"
	gdprservice "caskhouse/internal/gdpr/service"
	"caskhouse/internal/platform/config"
	siteconfighandler "caskhouse/internal/siteconfig/handler"
	siteconfigservice "caskhouse/internal/siteconfig/service"
	trackinghandler "caskhouse/internal/tracking/handler"
	trackingmetrics "caskhouse/internal/tracking/metrics"
	trackingservice "caskhouse/internal/tracking/service"
	"caskhouse/internal/workers/cleanup"
	"caskhouse/pkg/platform/tracer"
)

// app is the assembled set of module handlers plus the background pieces
// main has to run and close.
type app struct {
	auditor *audit.Publisher
	cleanup *cleanup.Service
	outbox  *outboxworker.Worker

	consentLog *consentloghandler.Handler
	gdpr       *gdprhandler.Handler
	tracking   *trackinghandler.Handler
	siteConfig *siteconfighandler.Handler
}

func buildApp(ctx context.Context, cfg config.Config, in *infra, log *slog.Logger) (*app, error) {
	auditStore, auditOutbox := in.auditStore()
	auditor := audit.NewPublisher(auditStore, audit.WithPublisherLogger(log))
	tr := tracer.NewOTel()

	consentLogSvc := consentlogservice.NewService(in.consentLogStore(), auditor, log,
		consentlogservice.WithMetrics(consentlogmetrics.New()),
	)

	events, err := in.eventStore(ctx)
	if err != nil {
		auditor.Close()
		return nil, err
	}
	captures, sweep := in.captureStore(log)
	trackingSvc := trackingservice.NewService(in.visitorStore(), events, captures, auditor, log,
		trackingservice.WithMetrics(trackingmetrics.New()),
		trackingservice.WithPublisher(in.producer, cfg.Kafka.EventsTopic),
		trackingservice.WithTracer(tr),
		trackingservice.WithCaptureTTL(cfg.Tracking.CaptureTTL),
	)

	gdprSvc := gdprservice.NewService(trackingSvc, auditor, log,
		gdprservice.WithMetrics(gdprmetrics.New()),
		gdprservice.WithTracer(tr),
	)

	siteConfigSvc := siteconfigservice.NewService(in.siteConfigStore(), auditor, log)
	if cfg.SiteConfigSeed != "" {
		created, err := siteConfigSvc.SeedFile(ctx, cfg.SiteConfigSeed)
		if err != nil {
			auditor.Close()
			return nil, fmt.Errorf("seed site config: %w", err)
		}
		log.Info("site config seeded", "path", cfg.SiteConfigSeed, "created", created)
	}

	a := &app{
		auditor:    auditor,
		consentLog: consentloghandler.New(consentLogSvc, log),
		gdpr:       gdprhandler.New(gdprSvc, log),
		tracking:   trackinghandler.New(trackingSvc, log),
		siteConfig: siteconfighandler.New(siteConfigSvc, log),
	}

	if auditOutbox != nil {
		a.outbox = outboxworker.New(auditOutbox, in.producer,
			outboxworker.WithTopic(cfg.Kafka.AuditTopic),
			outboxworker.WithMetrics(outboxmetrics.New()),
			outboxworker.WithLogger(log),
		)
		sweep = append(sweep, cleanup.Target{
			Name:  "audit_outbox",
			Store: outbox.Pruner{Store: auditOutbox, Retention: cfg.Kafka.OutboxRetention},
		})
	}

	if len(sweep) > 0 {
		a.cleanup, err = cleanup.New(sweep,
			cleanup.WithInterval(cfg.Tracking.CleanupInterval),
			cleanup.WithLogger(log),
		)
		if err != nil {
			auditor.Close()
			return nil, err
		}
	}
	return a, nil
}
