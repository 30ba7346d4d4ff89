package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Store persists inspections and everything they own.
type Store struct {
	db *sql.DB
	q  *Queries
}

// NewStore creates a Store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: New(db)}
}

// Queries exposes the statement layer for callers that work on raw rows,
// such as the job worker.
func (s *Store) Queries() *Queries {
	return s.q
}

func (s *Store) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.q.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// Inspections
// =============================================================================

// CreateInspection inserts an inspection together with its instances.
func (s *Store) CreateInspection(ctx context.Context, insp *domain.Inspection) error {
	const op = "repository.create_inspection"

	meta, err := marshalNull(insp.Metadata)
	if err != nil {
		return domain.Internal(err, op, "Failed to encode inspection metadata.")
	}

	err = s.withTx(ctx, func(q *Queries) error {
		row, err := q.CreateInspection(ctx, CreateInspectionParams{
			ID:                insp.ID,
			EstablishmentName: insp.EstablishmentName,
			Address:           insp.Address,
			InspectionType:    insp.Type.String(),
			InspectionDate:    insp.Date,
			Metadata:          meta,
		})
		if err != nil {
			return err
		}
		insp.CreatedAt = row.CreatedAt
		insp.UpdatedAt = row.UpdatedAt

		for i := range insp.Instances {
			if err := insertInstance(ctx, q, insp.ID, int32(i), &insp.Instances[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to create inspection.")
	}
	return nil
}

// GetInspection loads an inspection with its instances and phases.
func (s *Store) GetInspection(ctx context.Context, id uuid.UUID) (*domain.Inspection, error) {
	const op = "repository.get_inspection"

	row, err := s.q.GetInspection(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "inspection", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to load inspection.")
	}

	insp, err := rowToInspection(row)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to decode inspection.")
	}

	instances, err := s.q.ListInstancesByInspection(ctx, id)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load instances.")
	}
	phases, err := s.q.ListPhasesByInspection(ctx, id)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load phases.")
	}

	byInstance := make(map[uuid.UUID][]InspectionPhase, len(instances))
	for _, p := range phases {
		byInstance[p.InstanceID] = append(byInstance[p.InstanceID], p)
	}

	insp.Instances = make([]domain.PoiInstance, 0, len(instances))
	for _, r := range instances {
		inst, err := rowToInstance(r, byInstance[r.ID])
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to decode phase.")
		}
		insp.Instances = append(insp.Instances, inst)
	}
	return insp, nil
}

// ListInspections returns inspections newest first, without instances.
func (s *Store) ListInspections(ctx context.Context, limit, offset int) ([]domain.Inspection, error) {
	const op = "repository.list_inspections"

	rows, err := s.q.ListInspections(ctx, ListInspectionsParams{Limit: int32(limit), Offset: int32(offset)})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list inspections.")
	}

	out := make([]domain.Inspection, 0, len(rows))
	for _, r := range rows {
		insp, err := rowToInspection(r)
		if err != nil {
			return nil, domain.Internal(err, op, "Failed to decode inspection.")
		}
		out = append(out, *insp)
	}
	return out, nil
}

// DeleteInspection removes an inspection and, by cascade, everything it owns.
func (s *Store) DeleteInspection(ctx context.Context, id uuid.UUID) error {
	const op = "repository.delete_inspection"

	n, err := s.q.DeleteInspection(ctx, id)
	if err != nil {
		return domain.Internal(err, op, "Failed to delete inspection.")
	}
	if n == 0 {
		return domain.NotFound(op, "inspection", id.String())
	}
	return nil
}

// =============================================================================
// Instances
// =============================================================================

// AddInstance appends an instance to an inspection.
func (s *Store) AddInstance(ctx context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error {
	const op = "repository.add_instance"

	err := s.withTx(ctx, func(q *Queries) error {
		pos, err := q.NextInstancePosition(ctx, inspectionID)
		if err != nil {
			return err
		}
		if err := insertInstance(ctx, q, inspectionID, pos, inst); err != nil {
			return err
		}
		return q.TouchInspection(ctx, inspectionID)
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to add instance.")
	}
	return nil
}

// SaveInstance writes the phase, classification and photos of an instance
// in one transaction.
func (s *Store) SaveInstance(ctx context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error {
	const op = "repository.save_instance"

	var missing bool
	err := s.withTx(ctx, func(q *Queries) error {
		n, err := q.UpdateInstance(ctx, UpdateInstanceParams{
			ID:           inst.ID,
			InspectionID: inspectionID,
			CurrentPhase: int32(inst.CurrentPhase),
			RiskLevel:    string(inst.RiskLevel),
			DeadlineDays: nullInt32(inst.DeadlineDays),
		})
		if err != nil {
			return err
		}
		if n == 0 {
			missing = true
			return sql.ErrNoRows
		}
		if err := upsertPhases(ctx, q, inst); err != nil {
			return err
		}
		return q.TouchInspection(ctx, inspectionID)
	})
	if missing {
		return domain.NotFound(op, "instance", inst.ID.String())
	}
	if err != nil {
		return domain.Internal(err, op, "Failed to save instance.")
	}
	return nil
}

func insertInstance(ctx context.Context, q *Queries, inspectionID uuid.UUID, position int32, inst *domain.PoiInstance) error {
	risk := inst.RiskLevel
	if risk == "" {
		risk = domain.DefaultRiskLevel
	}
	err := q.CreateInstance(ctx, CreateInstanceParams{
		ID:           inst.ID,
		InspectionID: inspectionID,
		PoiID:        inst.PoiID,
		Position:     position,
		CurrentPhase: int32(inst.CurrentPhase),
		RiskLevel:    string(risk),
		DeadlineDays: nullInt32(inst.DeadlineDays),
	})
	if err != nil {
		return err
	}
	return upsertPhases(ctx, q, inst)
}

func upsertPhases(ctx context.Context, q *Queries, inst *domain.PoiInstance) error {
	for phase, p := range inst.Phases {
		if p == nil {
			continue
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		loc, err := marshalNullPtr(p.Location)
		if err != nil {
			return err
		}
		recs := p.SelectedRecommendationIDs
		if recs == nil {
			recs = []string{}
		}
		err = q.UpsertPhase(ctx, UpsertPhaseParams{
			ID:                        p.ID,
			InstanceID:                inst.ID,
			Phase:                     int32(phase),
			DataUrl:                   p.DataURL,
			CapturedAtMs:              p.TimestampMillis,
			Location:                  loc,
			SelectedRecommendationIds: recs,
			Comment:                   p.Comment,
			Status:                    p.Status.String(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Delegated Access
// =============================================================================

// ReplaceDelegatedAccess revokes the current link of the inspection, if any,
// and stores the new one.
func (s *Store) ReplaceDelegatedAccess(ctx context.Context, access *domain.DelegatedAccess) error {
	const op = "repository.replace_delegated_access"

	err := s.withTx(ctx, func(q *Queries) error {
		if err := q.DeleteDelegatedAccessByInspection(ctx, access.InspectionID); err != nil {
			return err
		}
		row, err := q.CreateDelegatedAccess(ctx, CreateDelegatedAccessParams{
			ID:           access.ID,
			InspectionID: access.InspectionID,
			Token:        access.Token,
			ExpiresAt:    access.ExpiresAt,
		})
		if err != nil {
			return err
		}
		access.CreatedAt = row.CreatedAt
		return nil
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to issue delegated access.")
	}
	return nil
}

// GetDelegatedAccess resolves a token. Unknown tokens are TokenInvalid.
func (s *Store) GetDelegatedAccess(ctx context.Context, token string) (*domain.DelegatedAccess, error) {
	const op = "repository.get_delegated_access"

	row, err := s.q.GetDelegatedAccessByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.TokenInvalid(op)
		}
		return nil, domain.Internal(err, op, "Failed to resolve delegated access.")
	}
	return &domain.DelegatedAccess{
		ID:           row.ID,
		InspectionID: row.InspectionID,
		Token:        row.Token,
		ExpiresAt:    row.ExpiresAt,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// =============================================================================
// Reports
// =============================================================================

// CreateReport records a generated report.
func (s *Store) CreateReport(ctx context.Context, r *domain.Report) error {
	const op = "repository.create_report"

	row, err := s.q.CreateReport(ctx, CreateReportParams{
		ID:           r.ID,
		InspectionID: r.InspectionID,
		Theme:        r.Theme.String(),
		StorageKey:   r.StorageKey,
		Filename:     r.Filename,
		PageCount:    int32(r.PageCount),
		SizeBytes:    r.SizeBytes,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to record report.")
	}
	r.GeneratedAt = row.GeneratedAt
	return nil
}

// ListReports returns the reports of an inspection, newest first.
func (s *Store) ListReports(ctx context.Context, inspectionID uuid.UUID) ([]domain.Report, error) {
	const op = "repository.list_reports"

	rows, err := s.q.ListReportsByInspection(ctx, inspectionID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list reports.")
	}
	out := make([]domain.Report, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Report{
			ID:           r.ID,
			InspectionID: r.InspectionID,
			Theme:        domain.ReportTheme(r.Theme),
			StorageKey:   r.StorageKey,
			Filename:     r.Filename,
			PageCount:    int(r.PageCount),
			SizeBytes:    r.SizeBytes,
			GeneratedAt:  r.GeneratedAt,
		})
	}
	return out, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToInspection(row Inspection) (*domain.Inspection, error) {
	insp := &domain.Inspection{
		ID:                row.ID,
		EstablishmentName: row.EstablishmentName,
		Address:           row.Address,
		Type:              domain.InspectionType(row.InspectionType),
		Date:              row.InspectionDate,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
	if row.Metadata.Valid {
		if err := json.Unmarshal(row.Metadata.RawMessage, &insp.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return insp, nil
}

func rowToInstance(row PoiInstance, phases []InspectionPhase) (domain.PoiInstance, error) {
	inst := domain.PoiInstance{
		ID:           row.ID,
		PoiID:        row.PoiID,
		CurrentPhase: int(row.CurrentPhase),
		RiskLevel:    domain.RiskLevel(row.RiskLevel),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.DeadlineDays.Valid {
		d := int(row.DeadlineDays.Int32)
		inst.DeadlineDays = &d
	}
	for _, p := range phases {
		if p.Phase < 0 || int(p.Phase) >= domain.PhaseCount {
			return inst, fmt.Errorf("phase %d out of range", p.Phase)
		}
		photo := &domain.PhasePhoto{
			ID:                        p.ID,
			DataURL:                   p.DataUrl,
			TimestampMillis:           p.CapturedAtMs,
			SelectedRecommendationIDs: p.SelectedRecommendationIds,
			Comment:                   p.Comment,
			Status:                    domain.PhaseStatus(p.Status),
		}
		if photo.SelectedRecommendationIDs == nil {
			photo.SelectedRecommendationIDs = []string{}
		}
		if p.Location.Valid {
			var loc domain.GeoLocation
			if err := json.Unmarshal(p.Location.RawMessage, &loc); err != nil {
				return inst, fmt.Errorf("decode location: %w", err)
			}
			photo.Location = &loc
		}
		inst.Phases[p.Phase] = photo
	}
	return inst, nil
}

func nullInt32(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func marshalNull(v any) (pqtype.NullRawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: data, Valid: true}, nil
}

func marshalNullPtr(loc *domain.GeoLocation) (pqtype.NullRawMessage, error) {
	if loc == nil {
		return pqtype.NullRawMessage{}, nil
	}
	return marshalNull(loc)
}
