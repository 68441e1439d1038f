package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	tracking "caskhouse/contracts/tracking"
	"caskhouse/internal/tracking/models"
	"caskhouse/pkg/platform/httputil"
	"caskhouse/pkg/platform/privacy"
	"caskhouse/pkg/requestcontext"
)

// Service defines the tracking operations the handler needs.
type Service interface {
	RecordVisitor(ctx context.Context, snap *tracking.VisitorSnapshot) error
	RecordEvent(ctx context.Context, req *tracking.EventRequest) (*models.Event, error)
	CaptureField(ctx context.Context, req *tracking.CaptureFieldRequest) (*models.CapturedField, error)
	Lead(ctx context.Context, visitorID string) (*models.Lead, error)
}

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the ingestion routes. Bodies may arrive as text/plain
// beacons; they are decoded as JSON either way.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/tracking/visitor", h.handleVisitor)
	r.Post("/api/tracking/event", h.handleEvent)
	r.Post("/api/tracking/capture-field", h.handleCaptureField)
}

// RegisterAdmin mounts operator routes; the caller applies admin auth.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/visitors/{visitorID}", h.handleLead)
}

func (h *Handler) handleVisitor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	snap, ok := httputil.DecodeAndPrepare[tracking.VisitorSnapshot](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.RecordVisitor(ctx, snap); err != nil {
		h.logger.ErrorContext(ctx, "failed to record visitor",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[tracking.EventRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	event, err := h.service.RecordEvent(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to record event",
			"request_id", requestID,
			"category", req.Category,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, tracking.AcceptedResponse{
		ID:     event.ID.String(),
		Status: "accepted",
	})
}

func (h *Handler) handleCaptureField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[tracking.CaptureFieldRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if _, err := h.service.CaptureField(ctx, req); err != nil {
		h.logger.ErrorContext(ctx, "failed to capture field",
			"request_id", requestID,
			"form_type", req.FormType,
			"field", req.FieldName,
			"value", privacy.RedactFieldValue(req.FieldName, req.FieldValue),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	visitorID := chi.URLParam(r, "visitorID")

	lead, err := h.service.Lead(ctx, visitorID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load lead",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lead.Response())
}
