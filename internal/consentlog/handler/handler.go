package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	consent "caskhouse/contracts/consent"
	"caskhouse/internal/consentlog/models"
	"caskhouse/pkg/platform/httputil"
	"caskhouse/pkg/requestcontext"
)

// Service defines the consent log operations the handler needs.
type Service interface {
	Log(ctx context.Context, req *consent.LogRequest) (*models.Entry, error)
	History(ctx context.Context, visitorID string, filter models.Filter) ([]*models.Entry, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the public consent routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/consent/log", h.handleLog)
}

// RegisterAdmin mounts operator routes; the caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/consent/logs", h.handleHistory)
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[consent.LogRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	entry, err := h.service.Log(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to log consent",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, consent.LogResponse{
		ID:         entry.ID.String(),
		ReceivedAt: entry.ReceivedAt,
	})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	visitorID, filter, err := parseHistoryQuery(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.service.History(ctx, visitorID, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consent history",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := models.ListResponse{VisitorID: visitorID, Entries: make([]models.EntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, e.Response())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
