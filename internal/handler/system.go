package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/storage"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves health checks, the POI catalog and locally stored
// files.
type SystemHandler struct {
	db      Pinger
	catalog *catalog.Catalog
	files   storage.Storage
	logger  *slog.Logger
}

// NewSystemHandler creates a new SystemHandler. files may be nil when the
// storage backend serves objects itself.
func NewSystemHandler(db Pinger, cat *catalog.Catalog, files storage.Storage, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		db:      db,
		catalog: cat,
		files:   files,
		logger:  logger,
	}
}

// RegisterRoutes registers the system routes.
//
// Routes:
//   - GET /health
//   - GET /api/catalog
//   - GET /files/{key...}
func (h *SystemHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/catalog", h.Catalog)
	if h.files != nil {
		mux.HandleFunc("GET /files/{key...}", h.File)
	}
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports whether the service and its database are up.
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "down"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Database: "up"})
}

// Catalog lists the points of interest and their recommendations.
// GET /api/catalog
func (h *SystemHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.All())
}

// File streams a stored object.
// GET /files/{key...}
func (h *SystemHandler) File(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	rc, info, err := h.files.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			NotFoundResponse(w, r, h.logger)
			return
		}
		InternalErrorResponse(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	cacheFor(w, time.Hour)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream file", "error", err)
	}
}
