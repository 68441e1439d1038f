package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caskhouse/internal/platform/config"
	"caskhouse/internal/platform/health"
	"caskhouse/pkg/platform/middleware/admin"
	"caskhouse/pkg/platform/middleware/metadata"
	"caskhouse/pkg/platform/middleware/request"
)

const maxBodyBytes = 1 << 20

func newRouter(cfg config.Config, a *app, in *infra, log *slog.Logger) http.Handler {
	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		log.Warn("ignoring invalid TRUSTED_PROXIES", "error", err)
		proxies = nil
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(metadata.Config{TrustedProxies: proxies}).Handler)
	r.Use(request.Logger(log))
	r.Use(request.LatencyMiddleware(request.NewMetrics()))
	r.Use(request.Timeout(cfg.Server.RequestTimeout))
	r.Use(request.BodyLimit(maxBodyBytes))

	h := health.New(cfg.Server.Environment)
	in.registerChecks(h)
	h.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	a.siteConfig.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		a.consentLog.Register(r)
		a.gdpr.Register(r)
	})

	// Unload beacons arrive as text/plain.
	r.Group(func(r chi.Router) {
		r.Use(request.ContentType("application/json", "text/plain"))
		a.tracking.Register(r)
	})

	if cfg.Server.AdminJWTSecret == "" {
		log.Warn("ADMIN_JWT_SECRET not set, admin routes disabled")
		return r
	}
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken([]byte(cfg.Server.AdminJWTSecret), log))
		r.Use(request.ContentTypeJSON)
		a.consentLog.RegisterAdmin(r)
		a.tracking.RegisterAdmin(r)
		a.siteConfig.RegisterAdmin(r)
	})
	return r
}
