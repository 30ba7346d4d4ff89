package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/DukeRupert/vistoria/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReports struct {
	service.ReportService

	err       error
	gotID     uuid.UUID
	gotTheme  domain.ReportTheme
	generated int
}

func (s *stubReports) Generate(_ context.Context, id uuid.UUID, theme domain.ReportTheme) (*domain.Report, error) {
	s.gotID, s.gotTheme = id, theme
	if s.err != nil {
		return nil, s.err
	}
	s.generated++
	return &domain.Report{ID: uuid.New(), InspectionID: id, Theme: theme, StorageKey: "reports/x.pdf"}, nil
}

func TestGenerateReportHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inspectionID := uuid.New()
	valid := []byte(`{"inspection_id":"` + inspectionID.String() + `","theme":"premium"}`)

	tests := []struct {
		name          string
		payload       []byte
		err           error
		wantErr       bool
		wantPermanent bool
		wantTheme     domain.ReportTheme
	}{
		{name: "success", payload: valid, wantTheme: domain.ReportThemePremium},
		{
			name:      "empty theme uses the default",
			payload:   []byte(`{"inspection_id":"` + inspectionID.String() + `"}`),
			wantTheme: "",
		},
		{name: "malformed json", payload: []byte(`{`), wantErr: true, wantPermanent: true},
		{name: "missing inspection id", payload: []byte(`{"theme":"standard"}`), wantErr: true, wantPermanent: true},
		{
			name:          "unknown theme",
			payload:       []byte(`{"inspection_id":"` + inspectionID.String() + `","theme":"neon"}`),
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "inspection gone",
			payload:       valid,
			err:           domain.NotFound("report.generate", "inspection", inspectionID.String()),
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:          "compilation failure",
			payload:       valid,
			err:           domain.CompilationFailure(errors.New("boom"), "report.compile"),
			wantErr:       true,
			wantPermanent: true,
		},
		{
			name:    "storage outage is retried",
			payload: valid,
			err:     domain.Internal(errors.New("timeout"), "report.generate", "Failed to store report."),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubReports{err: tt.err}
			h := NewGenerateReportHandler(stub, logger)
			assert.Equal(t, worker.JobTypeGenerateReport, h.Type())

			err := h.Handle(context.Background(), tt.payload)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, 1, stub.generated)
				assert.Equal(t, inspectionID, stub.gotID)
				assert.Equal(t, tt.wantTheme, stub.gotTheme)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantPermanent, worker.IsPermanent(err))
		})
	}
}
