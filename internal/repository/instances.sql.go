package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const createInstance = `-- name: CreateInstance :exec
INSERT INTO poi_instances (id, inspection_id, poi_id, position, current_phase, risk_level, deadline_days)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type CreateInstanceParams struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	PoiID        string
	Position     int32
	CurrentPhase int32
	RiskLevel    string
	DeadlineDays sql.NullInt32
}

func (q *Queries) CreateInstance(ctx context.Context, arg CreateInstanceParams) error {
	_, err := q.db.ExecContext(ctx, createInstance,
		arg.ID,
		arg.InspectionID,
		arg.PoiID,
		arg.Position,
		arg.CurrentPhase,
		arg.RiskLevel,
		arg.DeadlineDays,
	)
	return err
}

const nextInstancePosition = `-- name: NextInstancePosition :one
SELECT COALESCE(MAX(position) + 1, 0)::INTEGER FROM poi_instances WHERE inspection_id = $1
`

func (q *Queries) NextInstancePosition(ctx context.Context, inspectionID uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, nextInstancePosition, inspectionID)
	var position int32
	err := row.Scan(&position)
	return position, err
}

const listInstancesByInspection = `-- name: ListInstancesByInspection :many
SELECT id, inspection_id, poi_id, position, current_phase, risk_level, deadline_days, created_at, updated_at
FROM poi_instances
WHERE inspection_id = $1
ORDER BY position
`

func (q *Queries) ListInstancesByInspection(ctx context.Context, inspectionID uuid.UUID) ([]PoiInstance, error) {
	rows, err := q.db.QueryContext(ctx, listInstancesByInspection, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PoiInstance
	for rows.Next() {
		var i PoiInstance
		if err := rows.Scan(
			&i.ID,
			&i.InspectionID,
			&i.PoiID,
			&i.Position,
			&i.CurrentPhase,
			&i.RiskLevel,
			&i.DeadlineDays,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateInstance = `-- name: UpdateInstance :execrows
UPDATE poi_instances
SET current_phase = $3, risk_level = $4, deadline_days = $5, updated_at = NOW()
WHERE id = $1 AND inspection_id = $2
`

type UpdateInstanceParams struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	CurrentPhase int32
	RiskLevel    string
	DeadlineDays sql.NullInt32
}

func (q *Queries) UpdateInstance(ctx context.Context, arg UpdateInstanceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateInstance,
		arg.ID,
		arg.InspectionID,
		arg.CurrentPhase,
		arg.RiskLevel,
		arg.DeadlineDays,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listPhasesByInspection = `-- name: ListPhasesByInspection :many
SELECT p.id, p.instance_id, p.phase, p.data_url, p.captured_at_ms, p.location,
       p.selected_recommendation_ids, p.comment, p.status
FROM inspection_phases p
JOIN poi_instances i ON i.id = p.instance_id
WHERE i.inspection_id = $1
ORDER BY i.position, p.phase
`

func (q *Queries) ListPhasesByInspection(ctx context.Context, inspectionID uuid.UUID) ([]InspectionPhase, error) {
	rows, err := q.db.QueryContext(ctx, listPhasesByInspection, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InspectionPhase
	for rows.Next() {
		var i InspectionPhase
		if err := rows.Scan(
			&i.ID,
			&i.InstanceID,
			&i.Phase,
			&i.DataUrl,
			&i.CapturedAtMs,
			&i.Location,
			pq.Array(&i.SelectedRecommendationIds),
			&i.Comment,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertPhase = `-- name: UpsertPhase :exec
INSERT INTO inspection_phases (id, instance_id, phase, data_url, captured_at_ms, location,
                               selected_recommendation_ids, comment, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (instance_id, phase) DO UPDATE
SET data_url = EXCLUDED.data_url,
    captured_at_ms = EXCLUDED.captured_at_ms,
    location = EXCLUDED.location,
    selected_recommendation_ids = EXCLUDED.selected_recommendation_ids,
    comment = EXCLUDED.comment,
    status = EXCLUDED.status
`

type UpsertPhaseParams struct {
	ID                        uuid.UUID
	InstanceID                uuid.UUID
	Phase                     int32
	DataUrl                   string
	CapturedAtMs              int64
	Location                  pqtype.NullRawMessage
	SelectedRecommendationIds []string
	Comment                   string
	Status                    string
}

func (q *Queries) UpsertPhase(ctx context.Context, arg UpsertPhaseParams) error {
	_, err := q.db.ExecContext(ctx, upsertPhase,
		arg.ID,
		arg.InstanceID,
		arg.Phase,
		arg.DataUrl,
		arg.CapturedAtMs,
		arg.Location,
		pq.Array(arg.SelectedRecommendationIds),
		arg.Comment,
		arg.Status,
	)
	return err
}
