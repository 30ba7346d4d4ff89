// Package handler contains the HTTP handlers of the vistoria API.
//
// This file implements the inspector endpoints: inspections, their POI
// instances, phase submissions and delegated access links.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/middleware"
	"github.com/DukeRupert/vistoria/internal/service"
)

// InspectionHandler handles HTTP requests related to inspections.
type InspectionHandler struct {
	inspections service.InspectionService
	publicURL   string
	logger      *slog.Logger
}

// NewInspectionHandler creates a new InspectionHandler. publicURL is the
// externally reachable base URL used to build delegated access links.
func NewInspectionHandler(
	inspections service.InspectionService,
	publicURL string,
	logger *slog.Logger,
) *InspectionHandler {
	return &InspectionHandler{
		inspections: inspections,
		publicURL:   strings.TrimRight(publicURL, "/"),
		logger:      logger,
	}
}

// RegisterRoutes registers all inspection routes with the provided mux.
// guard wraps every route, typically with basic authentication.
//
// Routes:
//   - GET    /api/inspections
//   - POST   /api/inspections
//   - GET    /api/inspections/{id}
//   - DELETE /api/inspections/{id}
//   - GET    /api/inspections/{id}/progress
//   - POST   /api/inspections/{id}/instances
//   - POST   /api/inspections/{id}/instances/{instanceId}/phases/{phase}
//   - POST   /api/inspections/{id}/instances/{instanceId}/phases/{phase}/photo
//   - PUT    /api/inspections/{id}/instances/{instanceId}/classification
//   - POST   /api/inspections/{id}/delegated-access
func (h *InspectionHandler) RegisterRoutes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET /api/inspections", guard(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/inspections", guard(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/inspections/{id}", guard(http.HandlerFunc(h.Show)))
	mux.Handle("DELETE /api/inspections/{id}", guard(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/inspections/{id}/progress", guard(http.HandlerFunc(h.Progress)))
	mux.Handle("POST /api/inspections/{id}/instances", guard(http.HandlerFunc(h.AddInstance)))
	mux.Handle("POST /api/inspections/{id}/instances/{instanceId}/phases/{phase}", guard(http.HandlerFunc(h.SubmitPhase)))
	mux.Handle("POST /api/inspections/{id}/instances/{instanceId}/phases/{phase}/photo", guard(http.HandlerFunc(h.UploadPhoto)))
	mux.Handle("PUT /api/inspections/{id}/instances/{instanceId}/classification", guard(http.HandlerFunc(h.Classify)))
	mux.Handle("POST /api/inspections/{id}/delegated-access", guard(http.HandlerFunc(h.IssueDelegatedAccess)))
}

// =============================================================================
// Request Types
// =============================================================================

type createInspectionRequest struct {
	EstablishmentName string                `json:"establishmentName"`
	Address           string                `json:"address"`
	Type              domain.InspectionType `json:"type"`
	Date              *time.Time            `json:"date"`
	Metadata          domain.Metadata       `json:"metadata"`
}

type addInstanceRequest struct {
	PoiID string `json:"poiId"`
}

type submitPhaseRequest struct {
	DataURL                   string              `json:"dataUrl"`
	TimestampMillis           int64               `json:"timestamp"`
	Location                  *domain.GeoLocation `json:"location"`
	SelectedRecommendationIDs []string            `json:"selectedRecommendationIds"`
	Comment                   string              `json:"comment"`
	Status                    domain.PhaseStatus  `json:"status"`
	NotApplicable             bool                `json:"notApplicable"`
	RiskLevel                 domain.RiskLevel    `json:"riskLevel"`
	DeadlineDays              int                 `json:"deadlineDays"`
	FinalizeReview            bool                `json:"finalizeReview"`
}

type classifyRequest struct {
	RiskLevel    domain.RiskLevel `json:"riskLevel"`
	DeadlineDays int              `json:"deadlineDays"`
}

// DelegatedAccessResponse is returned when a delegated link is issued.
type DelegatedAccessResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PhotoResponse carries the reference of a stored photo.
type PhotoResponse struct {
	DataURL string `json:"dataUrl"`
}

// =============================================================================
// Handlers
// =============================================================================

// List returns a page of inspections.
// GET /api/inspections?limit=20&offset=0
func (h *InspectionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		BadRequestResponse(w, r, h.logger, "Invalid limit.")
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		BadRequestResponse(w, r, h.logger, "Invalid offset.")
		return
	}

	inspections, err := h.inspections.List(r.Context(), service.ListInspectionsParams{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if inspections == nil {
		inspections = []domain.Inspection{}
	}
	writeJSON(w, http.StatusOK, inspections)
}

// Create creates an inspection.
// POST /api/inspections
func (h *InspectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.create"

	var req createInspectionRequest
	if err := decodeJSON(w, r, op, createInspectionSchema, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params := domain.CreateInspectionParams{
		EstablishmentName: strings.TrimSpace(req.EstablishmentName),
		Address:           strings.TrimSpace(req.Address),
		Type:              req.Type,
		Metadata:          req.Metadata,
	}
	if req.Date != nil {
		params.Date = *req.Date
	}

	insp, err := h.inspections.Create(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("inspection created", "inspection_id", insp.ID, "type", insp.Type)
	w.Header().Set("Location", "/api/inspections/"+insp.ID.String())
	writeJSON(w, http.StatusCreated, insp)
}

// Show returns an inspection with its instances.
// GET /api/inspections/{id}
func (h *InspectionHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	insp, err := h.inspections.Get(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// Delete removes an inspection.
// DELETE /api/inspections/{id}
func (h *InspectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.inspections.Delete(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Progress returns the completion summary of an inspection.
// GET /api/inspections/{id}/progress
func (h *InspectionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	progress, err := h.inspections.Progress(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// AddInstance adds an occurrence of a catalog POI.
// POST /api/inspections/{id}/instances
func (h *InspectionHandler) AddInstance(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.add_instance"

	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req addInstanceRequest
	if err := decodeJSON(w, r, op, addInstanceSchema, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	inst, err := h.inspections.AddInstance(r.Context(), id, req.PoiID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// SubmitPhase records a phase of an instance.
// POST /api/inspections/{id}/instances/{instanceId}/phases/{phase}
func (h *InspectionHandler) SubmitPhase(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.submit_phase"

	params, ok := h.instancePhase(w, r)
	if !ok {
		return
	}

	var req submitPhaseRequest
	if err := decodeJSON(w, r, op, submitPhaseSchema, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	inst, err := h.inspections.SubmitPhase(r.Context(), service.SubmitPhaseParams{
		InspectionID: params.InspectionID,
		InstanceID:   params.InstanceID,
		Phase:        params.Phase,
		Submission: domain.PhaseSubmission{
			DataURL:                   req.DataURL,
			TimestampMillis:           req.TimestampMillis,
			Location:                  req.Location,
			SelectedRecommendationIDs: req.SelectedRecommendationIDs,
			Comment:                   req.Comment,
			Status:                    req.Status,
			NotApplicable:             req.NotApplicable,
			RiskLevel:                 req.RiskLevel,
			DeadlineDays:              req.DeadlineDays,
			FinalizeReview:            req.FinalizeReview,
		},
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// UploadPhoto stores an evidence photo and returns the reference to submit.
// POST /api/inspections/{id}/instances/{instanceId}/phases/{phase}/photo
func (h *InspectionHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.upload_photo"

	params, ok := h.instancePhase(w, r)
	if !ok {
		return
	}

	data, contentType, err := readPhoto(w, r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	params.ContentType = contentType
	params.Data = data
	key, err := h.inspections.UploadPhoto(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoResponse{DataURL: key})
}

// Classify sets the risk level and deadline of an instance.
// PUT /api/inspections/{id}/instances/{instanceId}/classification
func (h *InspectionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	const op = "handler.inspection.classify"

	inspectionID, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	instanceID, err := pathUUID(r, "instanceId")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req classifyRequest
	if err := decodeJSON(w, r, op, classifySchema, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	inst, err := h.inspections.Classify(r.Context(), service.ClassifyParams{
		InspectionID: inspectionID,
		InstanceID:   instanceID,
		RiskLevel:    req.RiskLevel,
		DeadlineDays: req.DeadlineDays,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// IssueDelegatedAccess creates a delegated access link, revoking any
// previous one.
// POST /api/inspections/{id}/delegated-access
func (h *InspectionHandler) IssueDelegatedAccess(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	access, err := h.inspections.IssueDelegatedAccess(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, DelegatedAccessResponse{
		Token:     access.Token,
		URL:       h.publicURL + middleware.DelegatedPathPrefix + access.Token,
		ExpiresAt: access.ExpiresAt,
	})
}

// =============================================================================
// Helper Methods
// =============================================================================

// instancePhase parses the inspection, instance and phase path parameters.
// On failure it writes the error response and returns false.
func (h *InspectionHandler) instancePhase(w http.ResponseWriter, r *http.Request) (service.UploadPhotoParams, bool) {
	var params service.UploadPhotoParams
	var err error

	if params.InspectionID, err = pathUUID(r, "id"); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return params, false
	}
	if params.InstanceID, err = pathUUID(r, "instanceId"); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return params, false
	}
	if params.Phase, err = pathInt(r, "phase"); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return params, false
	}
	return params, true
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
