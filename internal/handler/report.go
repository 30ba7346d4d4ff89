// Package handler contains HTTP handlers for the vistoria API.
//
// This file implements report handlers for rendering, queueing and
// downloading technical reports.
package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/DukeRupert/vistoria/internal/worker"
	"github.com/google/uuid"
)

// ReportHandler handles HTTP requests related to reports.
type ReportHandler struct {
	inspections service.InspectionService
	reports     service.ReportService
	queue       worker.Queue
	logger      *slog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(
	inspections service.InspectionService,
	reports service.ReportService,
	queue worker.Queue,
	logger *slog.Logger,
) *ReportHandler {
	return &ReportHandler{
		inspections: inspections,
		reports:     reports,
		queue:       queue,
		logger:      logger,
	}
}

// RegisterRoutes registers all report routes with the provided mux.
//
// Routes:
//   - GET  /api/inspections/{id}/report?theme=standard|premium
//   - POST /api/inspections/{id}/reports?theme=standard|premium
//   - GET  /api/inspections/{id}/reports
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux, guard func(http.Handler) http.Handler) {
	mux.Handle("GET /api/inspections/{id}/report", guard(http.HandlerFunc(h.Download)))
	mux.Handle("POST /api/inspections/{id}/reports", guard(http.HandlerFunc(h.Enqueue)))
	mux.Handle("GET /api/inspections/{id}/reports", guard(http.HandlerFunc(h.List)))
}

// EnqueueResponse describes a queued report generation.
type EnqueueResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// StoredReport is a stored report with a temporary download link.
type StoredReport struct {
	domain.Report
	URL string `json:"url"`
}

// Download renders the report of an inspection and streams the PDF.
// GET /api/inspections/{id}/report?theme=premium
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	theme, err := queryTheme(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Render into memory so failures still produce a JSON error.
	var buf bytes.Buffer
	built, err := h.reports.Build(r.Context(), id, theme, &buf)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("report downloaded",
		"inspection_id", id,
		"theme", built.Theme,
		"pages", built.PageCount,
		"size_bytes", built.SizeBytes,
	)

	w.Header().Set("Content-Type", domain.ReportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", built.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Error("failed to stream report", "error", err, "inspection_id", id)
	}
}

// Enqueue queues the asynchronous generation of a stored report.
// POST /api/inspections/{id}/reports?theme=premium
func (h *ReportHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	const op = "handler.report.enqueue"

	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	theme, err := queryTheme(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if _, err := h.inspections.Get(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	job, err := worker.EnqueueGenerateReport(r.Context(), h.queue, id, theme, worker.WithPriority(worker.PriorityHigh))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "Failed to queue the report."))
		return
	}

	h.logger.Info("report generation queued", "inspection_id", id, "job_id", job.ID, "theme", theme)
	writeJSON(w, http.StatusAccepted, EnqueueResponse{JobID: job.ID, Status: job.Status})
}

// List returns the stored reports of an inspection with download links.
// GET /api/inspections/{id}/reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	reports, err := h.reports.List(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	out := make([]StoredReport, 0, len(reports))
	for i := range reports {
		url, err := h.reports.Link(r.Context(), &reports[i])
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		out = append(out, StoredReport{Report: reports[i], URL: url})
	}
	writeJSON(w, http.StatusOK, out)
}

// queryTheme reads the optional theme query parameter. An empty theme lets
// the service pick its default.
func queryTheme(r *http.Request) (domain.ReportTheme, error) {
	raw := r.URL.Query().Get("theme")
	if raw == "" {
		return "", nil
	}
	return domain.ParseReportTheme(raw)
}

// cacheFor marks a response cacheable by the client for d.
func cacheFor(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(d.Seconds())))
}
