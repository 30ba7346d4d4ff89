package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/repository"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePDF = "%PDF-1.4\n% vistoria test\n"

type fakeReports struct {
	err      error
	gotTheme domain.ReportTheme
	stored   []domain.Report
}

func (f *fakeReports) Build(_ context.Context, _ uuid.UUID, theme domain.ReportTheme, w io.Writer) (*service.BuiltReport, error) {
	f.gotTheme = theme
	if f.err != nil {
		return nil, f.err
	}
	n, _ := io.WriteString(w, fakePDF)
	if theme == "" {
		theme = domain.ReportThemeStandard
	}
	return &service.BuiltReport{
		Filename:  "relatorio_tecnico_mercado_bom_preço.pdf",
		Theme:     theme,
		PageCount: 2,
		SizeBytes: int64(n),
	}, nil
}

func (f *fakeReports) Generate(context.Context, uuid.UUID, domain.ReportTheme) (*domain.Report, error) {
	return nil, errors.New("not used")
}

func (f *fakeReports) List(_ context.Context, _ uuid.UUID) ([]domain.Report, error) {
	return f.stored, f.err
}

func (f *fakeReports) Link(_ context.Context, r *domain.Report) (string, error) {
	return "https://cdn.example.com/" + r.StorageKey + "?sig=abc", nil
}

type fakeQueue struct {
	got []repository.EnqueueJobParams
	err error
}

func (q *fakeQueue) EnqueueJob(_ context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	if q.err != nil {
		return repository.Job{}, q.err
	}
	q.got = append(q.got, arg)
	return repository.Job{ID: arg.ID, JobType: arg.JobType, Status: "pending"}, nil
}

func newReportMux(insp *fakeInspections, reports *fakeReports, queue *fakeQueue) *http.ServeMux {
	mux := http.NewServeMux()
	NewReportHandler(insp, reports, queue, testLogger).RegisterRoutes(mux, passthrough)
	return mux
}

func TestReportHandler_Download(t *testing.T) {
	id := uuid.NewString()

	t.Run("streams the pdf", func(t *testing.T) {
		reports := &fakeReports{}
		rec := serve(newReportMux(&fakeInspections{}, reports, &fakeQueue{}), "GET", "/api/inspections/"+id+"/report?theme=premium", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.ReportThemePremium, reports.gotTheme)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "relatorio_tecnico_mercado_bom_pre")
		assert.Equal(t, fakePDF, rec.Body.String())
	})

	t.Run("default theme", func(t *testing.T) {
		reports := &fakeReports{}
		rec := serve(newReportMux(&fakeInspections{}, reports, &fakeQueue{}), "GET", "/api/inspections/"+id+"/report", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.ReportTheme(""), reports.gotTheme)
	})

	t.Run("unknown theme", func(t *testing.T) {
		rec := serve(newReportMux(&fakeInspections{}, &fakeReports{}, &fakeQueue{}), "GET", "/api/inspections/"+id+"/report?theme=neon", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("compilation failure is json", func(t *testing.T) {
		reports := &fakeReports{err: domain.CompilationFailure(errors.New("font missing"), "report.compile")}
		rec := serve(newReportMux(&fakeInspections{}, reports, &fakeQueue{}), "GET", "/api/inspections/"+id+"/report", "", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, domain.ECOMPILATION, decodeError(t, rec).Error.Code)
		assert.NotContains(t, rec.Body.String(), "font missing")
	})
}

func TestReportHandler_Enqueue(t *testing.T) {
	id := uuid.New()

	t.Run("queued", func(t *testing.T) {
		queue := &fakeQueue{}
		rec := serve(newReportMux(&fakeInspections{}, &fakeReports{}, queue), "POST", "/api/inspections/"+id.String()+"/reports?theme=premium", "", nil)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Len(t, queue.got, 1)

		var payload domain.GenerateReportPayload
		require.NoError(t, json.Unmarshal(queue.got[0].Payload, &payload))
		assert.Equal(t, id, payload.InspectionID)
		assert.Equal(t, domain.ReportThemePremium, payload.Theme)

		var resp EnqueueResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, queue.got[0].ID, resp.JobID)
		assert.Equal(t, "pending", resp.Status)
	})

	t.Run("missing inspection is not queued", func(t *testing.T) {
		queue := &fakeQueue{}
		insp := &fakeInspections{err: domain.NotFound("inspection.get", "inspection", id.String())}
		rec := serve(newReportMux(insp, &fakeReports{}, queue), "POST", "/api/inspections/"+id.String()+"/reports", "", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, queue.got)
	})

	t.Run("queue down", func(t *testing.T) {
		queue := &fakeQueue{err: errors.New("connection refused")}
		rec := serve(newReportMux(&fakeInspections{}, &fakeReports{}, queue), "POST", "/api/inspections/"+id.String()+"/reports", "", nil)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestReportHandler_List(t *testing.T) {
	id := uuid.New()
	reports := &fakeReports{stored: []domain.Report{{
		ID:           uuid.New(),
		InspectionID: id,
		Theme:        domain.ReportThemeStandard,
		StorageKey:   "reports/" + id.String() + "/relatorio.pdf",
		Filename:     "relatorio.pdf",
		PageCount:    3,
		GeneratedAt:  time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}}}

	rec := serve(newReportMux(&fakeInspections{}, reports, &fakeQueue{}), "GET", "/api/inspections/"+id.String()+"/reports", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []StoredReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].PageCount)
	assert.Equal(t, "https://cdn.example.com/reports/"+id.String()+"/relatorio.pdf?sig=abc", got[0].URL)
}
