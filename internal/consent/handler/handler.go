// Package handler exposes the consent lifecycle over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"concur/internal/consent/metrics"
	"concur/internal/consent/models"
	"concur/internal/platform/middleware"
	dErrors "concur/pkg/domain-errors"
	"concur/pkg/platform/httputil"
)

const requestTimeout = 30 * time.Second

// Service is the engine surface the handler depends on.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest) (*models.ConsentArtifact, error)
	Read(ctx context.Context, principalID, fiduciaryID string) (models.Projection, error)
	SetConsentStatus(ctx context.Context, principalID, fiduciaryID, purposeID string, granted bool) error
}

// Handler handles the consent preference endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a consent Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, metrics: metrics}
}

// Register mounts the consent routes under /v1.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(requestTimeout))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))
	router.Post("/consent/preferences", h.handleSubmit)
	router.Get("/consent/preferences", h.handleRead)
	router.Patch("/consent/preferences/status", h.handleSetStatus)

	r.Mount("/v1", router)
}

type submitResponse struct {
	AgreementID string                  `json:"agreement_id"`
	Artifact    *models.ConsentArtifact `json:"artifact"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	artifact, err := h.service.Submit(ctx, &req)
	if err != nil {
		h.writeServiceError(ctx, w, "submit consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, submitResponse{
		AgreementID: artifact.AgreementID,
		Artifact:    artifact,
	})
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principalID := r.URL.Query().Get("principal_id")
	fiduciaryID := r.URL.Query().Get("fiduciary_id")
	if principalID == "" || fiduciaryID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "principal_id and fiduciary_id are required"))
		return
	}

	projection, err := h.service.Read(ctx, principalID, fiduciaryID)
	if err != nil {
		h.writeServiceError(ctx, w, "read consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, projection)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid status request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetConsentStatus(ctx, req.PrincipalID, req.FiduciaryID, req.PurposeID, req.Granted); err != nil {
		h.writeServiceError(ctx, w, "set consent status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeInternal, dErrors.CodeStoreFailure:
		h.logger.ErrorContext(ctx, "operation failed",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	default:
		h.logger.WarnContext(ctx, "operation rejected",
			"op", op,
			"code", string(code),
			"request_id", middleware.GetRequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
