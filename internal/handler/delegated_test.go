package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "4b7e2f3c-1d9a-4c55-9e0a-2f6b8d1c7a40"

type fakeIntake struct {
	err error

	token    string
	captured service.CaptureParams
	bulk     []string
	upload   []byte
	uploadCT string
	calls    int
}

func (f *fakeIntake) View(_ context.Context, token string) (*service.DelegatedView, error) {
	f.calls++
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	return &service.DelegatedView{
		EstablishmentName: "Mercado Bom Preço",
		ExpiresAt:         time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC),
		Items: []service.DelegatedItem{
			{PoiID: "1", Title: "Extintor", Status: service.ItemPending},
		},
	}, nil
}

func (f *fakeIntake) Capture(_ context.Context, token string, params service.CaptureParams) (*domain.PoiInstance, error) {
	f.calls++
	f.token = token
	f.captured = params
	if f.err != nil {
		return nil, f.err
	}
	inst := domain.NewPoiInstance(params.PoiID)
	finding := &domain.PhasePhoto{
		ID:      uuid.New(),
		DataURL: params.DataURL,
		Comment: params.Comment,
		Status:  domain.PhaseStatusPending,
	}
	if params.NotApplicable {
		finding.DataURL = ""
		finding.Comment = domain.NotApplicableComment
		finding.Status = domain.PhaseStatusNotApplicable
	}
	inst.Phases[domain.PhaseFinding] = finding
	return &inst, nil
}

func (f *fakeIntake) UploadPhoto(_ context.Context, token, poiID, contentType string, data []byte) (string, error) {
	f.calls++
	f.token = token
	f.upload, f.uploadCT = data, contentType
	if f.err != nil {
		return "", f.err
	}
	return "inspections/i/photos/" + poiID + "/0-x.jpg", nil
}

func (f *fakeIntake) BulkMarkNotApplicable(_ context.Context, token string, poiIDs []string) ([]service.BulkResult, error) {
	f.calls++
	f.token = token
	f.bulk = poiIDs
	if f.err != nil {
		return nil, f.err
	}
	results := make([]service.BulkResult, len(poiIDs))
	for i, id := range poiIDs {
		results[i] = service.BulkResult{PoiID: id, Outcome: service.BulkApplied}
	}
	return results, nil
}

type countingRecorder struct {
	ips []string
}

func (c *countingRecorder) RecordRejectedToken(ip string) {
	c.ips = append(c.ips, ip)
}

func newDelegatedMux(f *fakeIntake, rec *countingRecorder) *http.ServeMux {
	mux := http.NewServeMux()
	NewDelegatedHandler(f, rec, testLogger).RegisterRoutes(mux, passthrough)
	return mux
}

func TestDelegatedHandler_View(t *testing.T) {
	f := &fakeIntake{}
	rec := serve(newDelegatedMux(f, &countingRecorder{}), "GET", "/d/"+testToken, "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testToken, f.token)

	var view service.DelegatedView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, service.ItemPending, view.Items[0].Status)
}

func TestDelegatedHandler_TokenRejections(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown token", domain.TokenInvalid("delegated.view"), http.StatusNotFound, domain.ETOKENINVALID},
		{"expired token", domain.TokenExpired("delegated.view"), http.StatusGone, domain.ETOKENEXPIRED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &countingRecorder{}
			mux := newDelegatedMux(&fakeIntake{err: tt.err}, recorder)

			rec := serve(mux, "GET", "/d/"+testToken, "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)

			rec = serve(mux, "POST", "/d/"+testToken+"/not-applicable", "application/json", []byte(`{"poiIds": ["1"]}`))
			assert.Equal(t, tt.wantStatus, rec.Code)

			assert.Equal(t, []string{"192.0.2.1", "192.0.2.1"}, recorder.ips)
		})
	}

	t.Run("other errors are not counted", func(t *testing.T) {
		recorder := &countingRecorder{}
		mux := newDelegatedMux(&fakeIntake{err: domain.CatalogMiss("delegated.capture", "99")}, recorder)

		rec := serve(mux, "POST", "/d/"+testToken+"/captures", "application/json", []byte(`{"poiId": "99", "dataUrl": "x"}`))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Empty(t, recorder.ips)
	})
}

func TestDelegatedHandler_Capture(t *testing.T) {
	f := &fakeIntake{}
	rec := serve(newDelegatedMux(f, &countingRecorder{}), "POST", "/d/"+testToken+"/captures", "application/json", []byte(`{
		"poiId": "1",
		"dataUrl": "data:image/jpeg;base64,/9j/4AAQ",
		"timestamp": 1714816800000,
		"location": {"lat": -23.55, "lng": -46.63},
		"comment": "Extintor vencido"
	}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "1", f.captured.PoiID)
	assert.Equal(t, "data:image/jpeg;base64,/9j/4AAQ", f.captured.DataURL)
	assert.Equal(t, int64(1714816800000), f.captured.TimestampMillis)
	require.NotNil(t, f.captured.Location)
	assert.Equal(t, -46.63, f.captured.Location.Lng)

	var item service.DelegatedItem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
	assert.Equal(t, service.ItemCaptured, item.Status)
	assert.Equal(t, "Extintor vencido", item.Comment)
}

func TestDelegatedHandler_CaptureNotApplicable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"without photo", `{"poiId": "2", "isNotApplicable": true}`},
		{"replacing a photo", `{"poiId": "2", "isNotApplicable": true, "dataUrl": "data:image/jpeg;base64,/9j/4AAQ"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeIntake{}
			rec := serve(newDelegatedMux(f, &countingRecorder{}), "POST", "/d/"+testToken+"/captures", "application/json", []byte(tt.body))

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "2", f.captured.PoiID)
			assert.True(t, f.captured.NotApplicable)

			var item service.DelegatedItem
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))
			assert.Equal(t, service.ItemNotApplicable, item.Status)
			assert.Equal(t, domain.NotApplicableComment, item.Comment)
		})
	}
}

func TestDelegatedHandler_CaptureValidation(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing photo", `{"poiId": "1"}`, "dataUrl"},
		{"missing photo when applicable", `{"poiId": "1", "isNotApplicable": false}`, "dataUrl"},
		{"non boolean flag", `{"poiId": "1", "dataUrl": "x", "isNotApplicable": "yes"}`, "isNotApplicable"},
		{"missing poi", `{"dataUrl": "x"}`, "poiId"},
		{"latitude out of range", `{"poiId": "1", "dataUrl": "x", "location": {"lat": 123, "lng": 0}}`, "location.lat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeIntake{}
			rec := serve(newDelegatedMux(f, &countingRecorder{}), "POST", "/d/"+testToken+"/captures", "application/json", []byte(tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error.Fields, tt.wantField)
			assert.Zero(t, f.calls)
		})
	}
}

func TestDelegatedHandler_BulkNotApplicable(t *testing.T) {
	f := &fakeIntake{}
	mux := newDelegatedMux(f, &countingRecorder{})

	rec := serve(mux, "POST", "/d/"+testToken+"/not-applicable", "application/json", []byte(`{"poiIds": ["2", "3"]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2", "3"}, f.bulk)

	var resp BulkNotApplicableResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, service.BulkApplied, resp.Results[1].Outcome)

	rec = serve(mux, "POST", "/d/"+testToken+"/not-applicable", "application/json", []byte(`{"poiIds": []}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelegatedHandler_UploadPhoto(t *testing.T) {
	f := &fakeIntake{}
	jpeg := []byte("\xff\xd8\xff\xe0fake")

	rec := serve(newDelegatedMux(f, &countingRecorder{}), "POST", "/d/"+testToken+"/photos/1", "image/jpeg", jpeg)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, jpeg, f.upload)
	assert.Equal(t, "image/jpeg", f.uploadCT)

	var resp PhotoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "inspections/i/photos/1/0-x.jpg", resp.DataURL)
}
