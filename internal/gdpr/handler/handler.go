package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/gdpr/service"
	"caskhouse/pkg/platform/httputil"
	"caskhouse/pkg/requestcontext"
)

// Service defines the erasure operation the handler needs.
type Service interface {
	Erase(ctx context.Context, req *consent.ErasureRequest) (*service.Result, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/gdpr/delete", h.handleDelete)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[consent.ErasureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Erase(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to erase visitor",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "visitor erased",
		"request_id", requestID,
		"visitors", result.Visitors,
		"events", result.Events,
		"captured_fields", result.CapturedFields,
	)
	httputil.WriteJSON(w, http.StatusAccepted, result.Response())
}
