package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/middleware"
	"github.com/DukeRupert/vistoria/internal/service"
)

// DelegatedIntake is the part of the delegated intake the public routes use.
type DelegatedIntake interface {
	View(ctx context.Context, token string) (*service.DelegatedView, error)
	Capture(ctx context.Context, token string, params service.CaptureParams) (*domain.PoiInstance, error)
	UploadPhoto(ctx context.Context, token, poiID, contentType string, data []byte) (string, error)
	BulkMarkNotApplicable(ctx context.Context, token string, poiIDs []string) ([]service.BulkResult, error)
}

// RejectionRecorder counts requests carrying tokens that did not resolve.
type RejectionRecorder interface {
	RecordRejectedToken(ip string)
}

// DelegatedHandler serves the token-authenticated routes used by an
// establishment contact to capture phase 0 photos.
type DelegatedHandler struct {
	intake     DelegatedIntake
	rejections RejectionRecorder
	logger     *slog.Logger
}

// NewDelegatedHandler creates a new DelegatedHandler. rejections may be nil.
func NewDelegatedHandler(intake DelegatedIntake, rejections RejectionRecorder, logger *slog.Logger) *DelegatedHandler {
	return &DelegatedHandler{
		intake:     intake,
		rejections: rejections,
		logger:     logger,
	}
}

// RegisterRoutes registers the delegated routes. limit wraps every route,
// typically with the delegated rate limiter.
//
// Routes:
//   - GET  /d/{token}
//   - POST /d/{token}/captures
//   - POST /d/{token}/photos/{poiId}
//   - POST /d/{token}/not-applicable
func (h *DelegatedHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /d/{token}", limit(http.HandlerFunc(h.View)))
	mux.Handle("POST /d/{token}/captures", limit(http.HandlerFunc(h.Capture)))
	mux.Handle("POST /d/{token}/photos/{poiId}", limit(http.HandlerFunc(h.UploadPhoto)))
	mux.Handle("POST /d/{token}/not-applicable", limit(http.HandlerFunc(h.BulkNotApplicable)))
}

// =============================================================================
// Request Types
// =============================================================================

type captureRequest struct {
	PoiID           string              `json:"poiId"`
	DataURL         string              `json:"dataUrl"`
	NotApplicable   bool                `json:"isNotApplicable"`
	TimestampMillis int64               `json:"timestamp"`
	Location        *domain.GeoLocation `json:"location"`
	Comment         string              `json:"comment"`
}

type bulkNotApplicableRequest struct {
	PoiIDs []string `json:"poiIds"`
}

// BulkNotApplicableResponse lists one result per requested POI.
type BulkNotApplicableResponse struct {
	Results []service.BulkResult `json:"results"`
}

// =============================================================================
// Handlers
// =============================================================================

// View returns the capture checklist of a delegated link.
// GET /d/{token}
func (h *DelegatedHandler) View(w http.ResponseWriter, r *http.Request) {
	view, err := h.intake.View(r.Context(), r.PathValue("token"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Capture records the phase 0 photo of a POI, or marks it not applicable.
// POST /d/{token}/captures
func (h *DelegatedHandler) Capture(w http.ResponseWriter, r *http.Request) {
	const op = "handler.delegated.capture"

	var req captureRequest
	if err := decodeJSON(w, r, op, captureSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	inst, err := h.intake.Capture(r.Context(), r.PathValue("token"), service.CaptureParams{
		PoiID:           req.PoiID,
		DataURL:         req.DataURL,
		NotApplicable:   req.NotApplicable,
		TimestampMillis: req.TimestampMillis,
		Location:        req.Location,
		Comment:         req.Comment,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := service.ItemCaptured
	if inst.IsNotApplicable() {
		status = service.ItemNotApplicable
	}
	writeJSON(w, http.StatusOK, service.DelegatedItem{
		InstanceID: inst.ID,
		PoiID:      inst.PoiID,
		Status:     status,
		Comment:    inst.Finding().Comment,
	})
}

// UploadPhoto stores a photo to be referenced by a capture.
// POST /d/{token}/photos/{poiId}
func (h *DelegatedHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	const op = "handler.delegated.upload_photo"

	data, contentType, err := readPhoto(w, r, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	key, err := h.intake.UploadPhoto(r.Context(), r.PathValue("token"), r.PathValue("poiId"), contentType, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoResponse{DataURL: key})
}

// BulkNotApplicable marks several POIs as not applicable.
// POST /d/{token}/not-applicable
func (h *DelegatedHandler) BulkNotApplicable(w http.ResponseWriter, r *http.Request) {
	const op = "handler.delegated.bulk_not_applicable"

	var req bulkNotApplicableRequest
	if err := decodeJSON(w, r, op, bulkNotApplicableSchema, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	results, err := h.intake.BulkMarkNotApplicable(r.Context(), r.PathValue("token"), req.PoiIDs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkNotApplicableResponse{Results: results})
}

// fail writes the error response, counting token rejections against the
// client so guessing gets throttled.
func (h *DelegatedHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch domain.ErrorCode(err) {
	case domain.ETOKENINVALID, domain.ETOKENEXPIRED:
		if h.rejections != nil {
			h.rejections.RecordRejectedToken(middleware.ClientIP(r))
		}
	}
	ErrorResponse(w, r, h.logger, err)
}
