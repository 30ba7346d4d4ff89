// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/DukeRupert/vistoria/internal/worker"
	"github.com/google/uuid"
)

// GenerateReportHandler processes jobs that render an inspection report and
// store it for later download.
type GenerateReportHandler struct {
	reports service.ReportService
	logger  *slog.Logger
}

// NewGenerateReportHandler creates a new handler for report generation jobs.
func NewGenerateReportHandler(reports service.ReportService, logger *slog.Logger) *GenerateReportHandler {
	return &GenerateReportHandler{
		reports: reports,
		logger:  logger,
	}
}

// Type returns the job type identifier.
func (h *GenerateReportHandler) Type() string {
	return worker.JobTypeGenerateReport
}

// Handle executes the report generation job.
//
// Malformed payloads, missing inspections and documents that cannot be
// compiled fail permanently. Storage and database errors are retried.
func (h *GenerateReportHandler) Handle(ctx context.Context, payload []byte) error {
	var p domain.GenerateReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}
	if p.InspectionID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: missing inspection_id"))
	}
	// An empty theme leaves the choice to the service default.
	theme := p.Theme
	if theme != "" && !theme.IsValid() {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: unknown theme %q", theme))
	}

	h.logger.Info("Generating report",
		"inspection_id", p.InspectionID,
		"theme", theme,
	)

	rec, err := h.reports.Generate(ctx, p.InspectionID, theme)
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.EINVALID, domain.ECOMPILATION:
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("generate report: %w", err)
	}

	h.logger.Info("Report generation completed",
		"report_id", rec.ID,
		"inspection_id", p.InspectionID,
		"storage_key", rec.StorageKey,
		"pages", rec.PageCount,
	)
	return nil
}
