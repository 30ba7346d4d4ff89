// Package service contains the business logic layer.
//
// This file implements the report service: compiling an inspection into a
// PDF, either streamed to the caller or stored and recorded.
package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/metrics"
	"github.com/DukeRupert/vistoria/internal/report"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/google/uuid"
)

// ReportLinkTTL is how long a stored report link stays valid.
const ReportLinkTTL = 15 * time.Minute

// =============================================================================
// Interface Definition
// =============================================================================

// ReportService defines operations for producing technical reports.
type ReportService interface {
	// Build compiles and renders the report of an inspection into w.
	// An empty theme selects the configured default.
	// Returns domain.EINVALID for unknown themes and domain.ECOMPILATION when
	// the document cannot be assembled.
	Build(ctx context.Context, inspectionID uuid.UUID, theme domain.ReportTheme, w io.Writer) (*BuiltReport, error)

	// Generate builds the report, stores the PDF and records it.
	Generate(ctx context.Context, inspectionID uuid.UUID, theme domain.ReportTheme) (*domain.Report, error)

	// List returns the stored reports of an inspection, newest first.
	List(ctx context.Context, inspectionID uuid.UUID) ([]domain.Report, error)

	// Link returns an address the stored report can be downloaded from.
	Link(ctx context.Context, r *domain.Report) (string, error)
}

// BuiltReport describes a rendered report.
type BuiltReport struct {
	Filename  string
	Theme     domain.ReportTheme
	PageCount int
	SizeBytes int64
}

// =============================================================================
// Implementation
// =============================================================================

type reportService struct {
	store        Store
	compiler     *report.Compiler
	renderer     *report.PDFRenderer
	storage      storage.Storage
	defaultTheme domain.ReportTheme
	logger       *slog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(
	store Store,
	compiler *report.Compiler,
	renderer *report.PDFRenderer,
	storage storage.Storage,
	defaultTheme domain.ReportTheme,
	logger *slog.Logger,
) ReportService {
	if !defaultTheme.IsValid() {
		defaultTheme = domain.ReportThemeStandard
	}
	return &reportService{
		store:        store,
		compiler:     compiler,
		renderer:     renderer,
		storage:      storage,
		defaultTheme: defaultTheme,
		logger:       logger,
	}
}

func (s *reportService) Build(ctx context.Context, inspectionID uuid.UUID, theme domain.ReportTheme, w io.Writer) (*BuiltReport, error) {
	insp, err := s.store.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, insp, theme, w)
}

func (s *reportService) build(ctx context.Context, insp *domain.Inspection, theme domain.ReportTheme, w io.Writer) (*BuiltReport, error) {
	const op = "report.build"

	if theme == "" {
		theme = s.defaultTheme
	}
	if !theme.IsValid() {
		return nil, domain.Errorf(domain.EINVALID, op, "unknown report theme %q", theme)
	}

	start := time.Now()
	doc, err := s.compiler.Compile(ctx, insp, theme)
	metrics.ObserveReportStage("compile", start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	n, err := s.renderer.Render(ctx, doc, w)
	metrics.ObserveReportStage("render", start)
	if err != nil {
		return nil, domain.CompilationFailure(err, op)
	}

	metrics.ReportsGenerated.WithLabelValues(theme.String()).Inc()
	metrics.ReportPages.Observe(float64(doc.PageCount()))

	s.logger.Info("report built",
		"inspection_id", insp.ID,
		"theme", theme,
		"pages", doc.PageCount(),
		"size", n,
	)
	return &BuiltReport{
		Filename:  report.Filename(insp.EstablishmentName),
		Theme:     theme,
		PageCount: doc.PageCount(),
		SizeBytes: n,
	}, nil
}

func (s *reportService) Generate(ctx context.Context, inspectionID uuid.UUID, theme domain.ReportTheme) (*domain.Report, error) {
	const op = "report.generate"

	insp, err := s.store.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	built, err := s.build(ctx, insp, theme, &buf)
	if err != nil {
		return nil, err
	}

	key := storage.ReportKey(insp.ID, built.Filename)
	start := time.Now()
	err = s.storage.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: domain.ReportContentType,
		Overwrite:   true,
	})
	metrics.ObserveReportStage("store", start)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to store report.")
	}

	rec := &domain.Report{
		ID:           uuid.New(),
		InspectionID: insp.ID,
		Theme:        built.Theme,
		StorageKey:   key,
		Filename:     built.Filename,
		PageCount:    built.PageCount,
		SizeBytes:    built.SizeBytes,
	}
	if err := s.store.CreateReport(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("report stored",
		"inspection_id", insp.ID,
		"report_id", rec.ID,
		"key", key,
	)
	return rec, nil
}

func (s *reportService) List(ctx context.Context, inspectionID uuid.UUID) ([]domain.Report, error) {
	if _, err := s.store.GetInspection(ctx, inspectionID); err != nil {
		return nil, err
	}
	return s.store.ListReports(ctx, inspectionID)
}

func (s *reportService) Link(ctx context.Context, r *domain.Report) (string, error) {
	const op = "report.link"

	url, err := s.storage.URL(ctx, r.StorageKey, ReportLinkTTL)
	if err != nil {
		return "", domain.Internal(err, op, "Failed to create report link.")
	}
	return url, nil
}
