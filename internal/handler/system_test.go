package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func newSystemMux(t *testing.T, db Pinger) (*http.ServeMux, *storage.LocalStorage) {
	t.Helper()
	cat, err := catalog.New([]catalog.PointOfInterest{
		{ID: "1", Title: "Extintor", Recommendations: []catalog.Recommendation{{ID: "1.1", Text: "Recarregar"}}},
	})
	require.NoError(t, err)

	files, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewSystemHandler(db, cat, files, testLogger).RegisterRoutes(mux)
	return mux, files
}

func TestSystemHandler_Health(t *testing.T) {
	mux, _ := newSystemMux(t, fakePinger{})
	rec := serve(mux, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"up"}`, rec.Body.String())

	mux, _ = newSystemMux(t, fakePinger{err: errors.New("dial tcp: refused")})
	rec = serve(mux, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestSystemHandler_Catalog(t *testing.T) {
	mux, _ := newSystemMux(t, fakePinger{})
	rec := serve(mux, "GET", "/api/catalog", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []catalog.PointOfInterest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Recarregar", got[0].Recommendations[0].Text)
}

func TestSystemHandler_File(t *testing.T) {
	mux, files := newSystemMux(t, fakePinger{})
	key := "inspections/abc/photos/def/0-photo.png"
	data := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, files.Put(context.Background(), key, bytes.NewReader(data), storage.PutOptions{ContentType: "image/png"}))

	rec := serve(mux, "GET", "/files/"+key, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = serve(mux, "GET", "/files/inspections/missing.png", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
