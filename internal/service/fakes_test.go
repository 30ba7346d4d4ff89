package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/lifecycle"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// In-memory Store
// =============================================================================

type memStore struct {
	mu          sync.Mutex
	inspections map[uuid.UUID]*domain.Inspection
	access      map[string]*domain.DelegatedAccess
	reports     []domain.Report

	saves      int
	adds       int
	failSaveOf string // POI whose SaveInstance fails
	lastLimit  int
	lastOffset int
}

func newMemStore() *memStore {
	return &memStore{
		inspections: map[uuid.UUID]*domain.Inspection{},
		access:      map[string]*domain.DelegatedAccess{},
	}
}

func cloneInspection(in *domain.Inspection) *domain.Inspection {
	out := *in
	out.Instances = make([]domain.PoiInstance, len(in.Instances))
	for i := range in.Instances {
		out.Instances[i] = in.Instances[i].Clone()
	}
	return &out
}

func (m *memStore) CreateInspection(_ context.Context, insp *domain.Inspection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	insp.CreatedAt, insp.UpdatedAt = now, now
	m.inspections[insp.ID] = cloneInspection(insp)
	return nil
}

func (m *memStore) GetInspection(_ context.Context, id uuid.UUID) (*domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	insp, ok := m.inspections[id]
	if !ok {
		return nil, domain.NotFound("memstore.get_inspection", "inspection", id.String())
	}
	return cloneInspection(insp), nil
}

func (m *memStore) ListInspections(_ context.Context, limit, offset int) ([]domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit, m.lastOffset = limit, offset
	out := make([]domain.Inspection, 0, len(m.inspections))
	for _, insp := range m.inspections {
		c := *insp
		c.Instances = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.Inspection{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) DeleteInspection(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inspections[id]; !ok {
		return domain.NotFound("memstore.delete_inspection", "inspection", id.String())
	}
	delete(m.inspections, id)
	return nil
}

func (m *memStore) AddInstance(_ context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insp, ok := m.inspections[inspectionID]
	if !ok {
		return domain.NotFound("memstore.add_instance", "inspection", inspectionID.String())
	}
	insp.Instances = append(insp.Instances, inst.Clone())
	m.adds++
	return nil
}

// dropInstance removes the instance of poiID, as if the POI joined the
// catalog after the inspection was created.
func (m *memStore) dropInstance(t *testing.T, inspectionID uuid.UUID, poiID string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	insp, ok := m.inspections[inspectionID]
	require.True(t, ok)
	kept := insp.Instances[:0]
	for _, inst := range insp.Instances {
		if inst.PoiID != poiID {
			kept = append(kept, inst)
		}
	}
	require.Len(t, kept, len(insp.Instances)-1)
	insp.Instances = kept
}

func (m *memStore) SaveInstance(_ context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveOf != "" && inst.PoiID == m.failSaveOf {
		return domain.Internal(io.ErrUnexpectedEOF, "memstore.save_instance", "Failed to save instance.")
	}
	insp, ok := m.inspections[inspectionID]
	if !ok {
		return domain.NotFound("memstore.save_instance", "inspection", inspectionID.String())
	}
	stored := insp.Instance(inst.ID)
	if stored == nil {
		return domain.NotFound("memstore.save_instance", "instance", inst.ID.String())
	}
	*stored = inst.Clone()
	m.saves++
	return nil
}

func (m *memStore) ReplaceDelegatedAccess(_ context.Context, access *domain.DelegatedAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, a := range m.access {
		if a.InspectionID == access.InspectionID {
			delete(m.access, token)
		}
	}
	access.CreatedAt = time.Now()
	c := *access
	m.access[access.Token] = &c
	return nil
}

func (m *memStore) GetDelegatedAccess(_ context.Context, token string) (*domain.DelegatedAccess, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.access[token]
	if !ok {
		return nil, domain.TokenInvalid("memstore.get_delegated_access")
	}
	c := *a
	return &c, nil
}

func (m *memStore) CreateReport(_ context.Context, r *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.GeneratedAt = time.Now()
	m.reports = append(m.reports, *r)
	return nil
}

func (m *memStore) ListReports(_ context.Context, inspectionID uuid.UUID) ([]domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Report
	for _, r := range m.reports {
		if r.InspectionID == inspectionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// stored returns the persisted copy of an inspection.
func (m *memStore) stored(t *testing.T, id uuid.UUID) *domain.Inspection {
	t.Helper()
	insp, err := m.GetInspection(context.Background(), id)
	require.NoError(t, err)
	return insp
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.PointOfInterest{
		{
			ID:    "1",
			Title: "Extintor",
			Recommendations: []catalog.Recommendation{
				{ID: "1.1", Text: "Desobstruir os extintores."},
				{ID: "1.2", Text: "Recarregar os extintores vencidos."},
			},
		},
		{
			ID:    "2",
			Title: "Hidrante",
			Recommendations: []catalog.Recommendation{
				{ID: "2.1", Text: "Substituir a mangueira do hidrante."},
			},
		},
		{ID: "3", Title: "Iluminação de emergência"},
	})
	require.NoError(t, err)
	return cat
}

func testPhotos(t *testing.T) (*storage.PhotoStore, *storage.LocalStorage) {
	t.Helper()
	local, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, discardLogger())
	require.NoError(t, err)
	return storage.NewPhotoStore(local, time.Hour), local
}

type fixture struct {
	store    *memStore
	catalog  *catalog.Catalog
	machine  *lifecycle.Machine
	photos   *storage.PhotoStore
	local    *storage.LocalStorage
	svc      *inspectionService
	delegate *DelegatedIntake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	cat := testCatalog(t)
	machine := lifecycle.NewMachine(cat).WithClock(func() time.Time { return fixedNow })
	photos, local := testPhotos(t)

	svc := NewInspectionService(store, cat, machine, photos, 48*time.Hour, discardLogger()).(*inspectionService)
	svc.now = func() time.Time { return fixedNow }

	delegate := NewDelegatedIntake(store, cat, machine, photos, discardLogger())
	delegate.now = func() time.Time { return fixedNow }

	return &fixture{
		store:    store,
		catalog:  cat,
		machine:  machine,
		photos:   photos,
		local:    local,
		svc:      svc,
		delegate: delegate,
	}
}

func (f *fixture) create(t *testing.T, typ domain.InspectionType) *domain.Inspection {
	t.Helper()
	insp, err := f.svc.Create(context.Background(), domain.CreateInspectionParams{
		EstablishmentName: "Mercado Bom Preço",
		Address:           "Rua das Palmeiras, 45, Centro, Maringá",
		Type:              typ,
		Date:              fixedNow,
	})
	require.NoError(t, err)
	return insp
}

// issue creates a delegated inspection and a live access token for it.
func (f *fixture) issue(t *testing.T) (*domain.Inspection, string) {
	t.Helper()
	insp := f.create(t, domain.InspectionTypeDelegated)
	access, err := f.svc.IssueDelegatedAccess(context.Background(), insp.ID)
	require.NoError(t, err)
	return insp, access.Token
}

const photoRef = "data:image/png;base64,iVBORw0KGgo="

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}
