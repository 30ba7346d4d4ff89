// Package service contains the business logic layer.
//
// This file implements the inspection service used by the inspector: the
// inspection lifecycle, phase submissions, classification and issuing
// delegated access links.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/lifecycle"
	"github.com/DukeRupert/vistoria/internal/metrics"
	"github.com/DukeRupert/vistoria/internal/storage"
	"github.com/google/uuid"
)

// Pagination defaults for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// =============================================================================
// Interface Definition
// =============================================================================

// InspectionService defines the operations available to the inspector.
type InspectionService interface {
	// Create creates a new inspection.
	// Delegated inspections start with one instance per catalogued POI.
	// Returns domain.EINVALID for validation errors.
	Create(ctx context.Context, params domain.CreateInspectionParams) (*domain.Inspection, error)

	// Get retrieves an inspection with its instances.
	// Returns domain.ENOTFOUND if the inspection does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)

	// List returns a page of inspections, newest first, without instances.
	List(ctx context.Context, params ListInspectionsParams) ([]domain.Inspection, error)

	// Delete removes an inspection with everything it owns.
	// Returns domain.ENOTFOUND if the inspection does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// AddInstance adds an occurrence of a POI to an inspection.
	// Returns domain.ECATALOGMISS for unknown POIs and domain.ECONFLICT when a
	// delegated inspection already holds the POI.
	AddInstance(ctx context.Context, inspectionID uuid.UUID, poiID string) (*domain.PoiInstance, error)

	// SubmitPhase writes a phase of an instance on behalf of the inspector.
	// State machine errors are returned unchanged and leave the instance as
	// it was.
	SubmitPhase(ctx context.Context, params SubmitPhaseParams) (*domain.PoiInstance, error)

	// Classify sets the risk level and deadline of an instance at phase 0.
	Classify(ctx context.Context, params ClassifyParams) (*domain.PoiInstance, error)

	// Progress summarizes the instances of an inspection.
	Progress(ctx context.Context, id uuid.UUID) (domain.Progress, error)

	// UploadPhoto stores an evidence photo for an instance phase and returns
	// the key to submit in place of a data URL.
	UploadPhoto(ctx context.Context, params UploadPhotoParams) (string, error)

	// IssueDelegatedAccess creates a fresh access link for a delegated
	// inspection, revoking the previous one.
	// Returns domain.EINVALID for internal inspections.
	IssueDelegatedAccess(ctx context.Context, inspectionID uuid.UUID) (*domain.DelegatedAccess, error)
}

// ListInspectionsParams selects a page of inspections.
type ListInspectionsParams struct {
	Limit  int
	Offset int
}

// SubmitPhaseParams identifies the phase being written.
type SubmitPhaseParams struct {
	InspectionID uuid.UUID
	InstanceID   uuid.UUID
	Phase        int
	Submission   domain.PhaseSubmission
}

// ClassifyParams carries a classification of an instance.
type ClassifyParams struct {
	InspectionID uuid.UUID
	InstanceID   uuid.UUID
	RiskLevel    domain.RiskLevel
	DeadlineDays int
}

// UploadPhotoParams carries an evidence photo upload.
type UploadPhotoParams struct {
	InspectionID uuid.UUID
	InstanceID   uuid.UUID
	Phase        int
	ContentType  string
	Data         []byte
}

// =============================================================================
// Implementation
// =============================================================================

type inspectionService struct {
	store      Store
	catalog    *catalog.Catalog
	machine    *lifecycle.Machine
	classifier lifecycle.Classifier
	photos     *storage.PhotoStore
	accessTTL  time.Duration
	logger     *slog.Logger
	now        Clock
}

// NewInspectionService creates a new InspectionService.
//
// Delegated access links stay valid for accessTTL, or for
// domain.DelegatedAccessDuration when accessTTL is not positive.
//
// Example usage:
//
//	svc := service.NewInspectionService(store, cat, machine, photos, cfg.DelegatedAccessTTL, logger)
func NewInspectionService(
	store Store,
	cat *catalog.Catalog,
	machine *lifecycle.Machine,
	photos *storage.PhotoStore,
	accessTTL time.Duration,
	logger *slog.Logger,
) InspectionService {
	if accessTTL <= 0 {
		accessTTL = domain.DelegatedAccessDuration
	}
	return &inspectionService{
		store:     store,
		catalog:   cat,
		machine:   machine,
		photos:    photos,
		accessTTL: accessTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// =============================================================================
// Create / Get / List / Delete
// =============================================================================

func (s *inspectionService) Create(ctx context.Context, params domain.CreateInspectionParams) (*domain.Inspection, error) {
	const op = "inspection.create"

	if err := params.Validate(op); err != nil {
		return nil, err
	}

	date := params.Date
	if date.IsZero() {
		date = s.now()
	}

	insp := &domain.Inspection{
		ID:                uuid.New(),
		EstablishmentName: params.EstablishmentName,
		Address:           params.Address,
		Type:              params.Type,
		Date:              date,
		Metadata:          params.Metadata,
		Instances:         []domain.PoiInstance{},
	}
	if insp.IsDelegated() {
		for _, poi := range s.catalog.All() {
			insp.Instances = append(insp.Instances, delegatedInstance(poi.ID))
		}
	}

	if err := s.store.CreateInspection(ctx, insp); err != nil {
		return nil, err
	}

	metrics.InspectionsCreated.WithLabelValues(insp.Type.String()).Inc()
	s.logger.Info("inspection created",
		"inspection_id", insp.ID,
		"type", insp.Type,
		"instances", len(insp.Instances),
	)
	return insp, nil
}

// delegatedInstance is an instance awaiting the contact's capture,
// classified with the defaults.
func delegatedInstance(poiID string) domain.PoiInstance {
	inst := domain.NewPoiInstance(poiID)
	days := domain.DefaultDeadlineDays
	inst.RiskLevel = domain.DefaultRiskLevel
	inst.DeadlineDays = &days
	return inst
}

func (s *inspectionService) Get(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	return s.store.GetInspection(ctx, id)
}

func (s *inspectionService) List(ctx context.Context, params ListInspectionsParams) ([]domain.Inspection, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	return s.store.ListInspections(ctx, limit, offset)
}

func (s *inspectionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteInspection(ctx, id); err != nil {
		return err
	}
	s.logger.Info("inspection deleted", "inspection_id", id)
	return nil
}

// =============================================================================
// Instances
// =============================================================================

func (s *inspectionService) AddInstance(ctx context.Context, inspectionID uuid.UUID, poiID string) (*domain.PoiInstance, error) {
	const op = "inspection.add_instance"

	if _, ok := s.catalog.Lookup(poiID); !ok {
		return nil, domain.CatalogMiss(op, poiID)
	}

	insp, err := s.store.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}

	var inst domain.PoiInstance
	if insp.IsDelegated() {
		if insp.InstanceForPOI(poiID) != nil {
			return nil, domain.Conflict(op, "Delegated inspections hold a single instance per POI.")
		}
		inst = delegatedInstance(poiID)
	} else {
		inst = domain.NewPoiInstance(poiID)
	}

	if err := s.store.AddInstance(ctx, inspectionID, &inst); err != nil {
		return nil, err
	}

	s.logger.Info("instance added",
		"inspection_id", inspectionID,
		"instance_id", inst.ID,
		"poi_id", poiID,
	)
	return &inst, nil
}

func (s *inspectionService) SubmitPhase(ctx context.Context, params SubmitPhaseParams) (*domain.PoiInstance, error) {
	insp, current, err := s.loadInstance(ctx, "inspection.submit_phase", params.InspectionID, params.InstanceID)
	if err != nil {
		return nil, err
	}

	sub := params.Submission
	sub.Origin = domain.OriginInspector

	next := current.Clone()
	err = s.machine.Submit(insp.Type, &next, params.Phase, sub)
	metrics.PhaseSubmissions.WithLabelValues(strconv.Itoa(params.Phase), resultLabel(err)).Inc()
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveInstance(ctx, insp.ID, &next); err != nil {
		return nil, err
	}

	s.logger.Info("phase submitted",
		"inspection_id", insp.ID,
		"instance_id", next.ID,
		"phase", params.Phase,
		"current_phase", next.CurrentPhase,
	)
	return &next, nil
}

func (s *inspectionService) Classify(ctx context.Context, params ClassifyParams) (*domain.PoiInstance, error) {
	insp, current, err := s.loadInstance(ctx, "inspection.classify", params.InspectionID, params.InstanceID)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := s.classifier.Classify(&next, params.RiskLevel, params.DeadlineDays); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()

	if err := s.store.SaveInstance(ctx, insp.ID, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *inspectionService) Progress(ctx context.Context, id uuid.UUID) (domain.Progress, error) {
	insp, err := s.store.GetInspection(ctx, id)
	if err != nil {
		return domain.Progress{}, err
	}
	return lifecycle.ComputeProgress(insp), nil
}

func (s *inspectionService) UploadPhoto(ctx context.Context, params UploadPhotoParams) (string, error) {
	if _, _, err := s.loadInstance(ctx, "inspection.upload_photo", params.InspectionID, params.InstanceID); err != nil {
		return "", err
	}
	return s.photos.Store(ctx, storage.Upload{
		InspectionID: params.InspectionID,
		InstanceID:   params.InstanceID,
		Phase:        params.Phase,
		ContentType:  params.ContentType,
		Data:         params.Data,
	})
}

// loadInstance loads an inspection and locates one of its instances.
func (s *inspectionService) loadInstance(ctx context.Context, op string, inspectionID, instanceID uuid.UUID) (*domain.Inspection, *domain.PoiInstance, error) {
	insp, err := s.store.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, nil, err
	}
	inst := insp.Instance(instanceID)
	if inst == nil {
		return nil, nil, domain.NotFound(op, "instance", instanceID.String())
	}
	return insp, inst, nil
}

// =============================================================================
// Delegated Access
// =============================================================================

func (s *inspectionService) IssueDelegatedAccess(ctx context.Context, inspectionID uuid.UUID) (*domain.DelegatedAccess, error) {
	const op = "inspection.issue_delegated_access"

	insp, err := s.store.GetInspection(ctx, inspectionID)
	if err != nil {
		return nil, err
	}
	if !insp.IsDelegated() {
		return nil, domain.Invalid(op, "Only delegated inspections accept access links.")
	}

	access := &domain.DelegatedAccess{
		ID:           uuid.New(),
		InspectionID: insp.ID,
		Token:        uuid.NewString(),
		ExpiresAt:    s.now().Add(s.accessTTL),
	}
	if err := s.store.ReplaceDelegatedAccess(ctx, access); err != nil {
		return nil, err
	}

	metrics.DelegatedAccessIssued.Inc()
	s.logger.Info("delegated access issued",
		"inspection_id", insp.ID,
		"expires_at", access.ExpiresAt,
	)
	return access, nil
}

// resultLabel turns an operation error into a metrics label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.ErrorCode(err)
}
