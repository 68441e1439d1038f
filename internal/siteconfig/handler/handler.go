package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caskhouse/internal/siteconfig/models"
	"caskhouse/pkg/platform/httputil"
	"caskhouse/pkg/requestcontext"
)

// Service defines the site config operations the handler needs.
type Service interface {
	Get(ctx context.Context, key string) (*models.Config, error)
	Update(ctx context.Context, req *models.UpdateRequest) (*models.Config, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/site-config", h.handleGet)
}

// RegisterAdmin mounts operator routes; the caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/site-config", h.handlePut)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.service.Get(ctx, r.URL.Query().Get("key"))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load site config",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.Response())
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	c, err := h.service.Update(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to update site config",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.Response())
}
