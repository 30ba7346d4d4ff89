package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const createInspection = `-- name: CreateInspection :one
INSERT INTO inspections (id, establishment_name, address, inspection_type, inspection_date, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, establishment_name, address, inspection_type, inspection_date, metadata, created_at, updated_at
`

type CreateInspectionParams struct {
	ID                uuid.UUID
	EstablishmentName string
	Address           string
	InspectionType    string
	InspectionDate    time.Time
	Metadata          pqtype.NullRawMessage
}

func (q *Queries) CreateInspection(ctx context.Context, arg CreateInspectionParams) (Inspection, error) {
	row := q.db.QueryRowContext(ctx, createInspection,
		arg.ID,
		arg.EstablishmentName,
		arg.Address,
		arg.InspectionType,
		arg.InspectionDate,
		arg.Metadata,
	)
	var i Inspection
	err := row.Scan(
		&i.ID,
		&i.EstablishmentName,
		&i.Address,
		&i.InspectionType,
		&i.InspectionDate,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getInspection = `-- name: GetInspection :one
SELECT id, establishment_name, address, inspection_type, inspection_date, metadata, created_at, updated_at
FROM inspections
WHERE id = $1
`

func (q *Queries) GetInspection(ctx context.Context, id uuid.UUID) (Inspection, error) {
	row := q.db.QueryRowContext(ctx, getInspection, id)
	var i Inspection
	err := row.Scan(
		&i.ID,
		&i.EstablishmentName,
		&i.Address,
		&i.InspectionType,
		&i.InspectionDate,
		&i.Metadata,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listInspections = `-- name: ListInspections :many
SELECT id, establishment_name, address, inspection_type, inspection_date, metadata, created_at, updated_at
FROM inspections
ORDER BY inspection_date DESC, created_at DESC
LIMIT $1 OFFSET $2
`

type ListInspectionsParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListInspections(ctx context.Context, arg ListInspectionsParams) ([]Inspection, error) {
	rows, err := q.db.QueryContext(ctx, listInspections, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Inspection
	for rows.Next() {
		var i Inspection
		if err := rows.Scan(
			&i.ID,
			&i.EstablishmentName,
			&i.Address,
			&i.InspectionType,
			&i.InspectionDate,
			&i.Metadata,
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

const touchInspection = `-- name: TouchInspection :exec
UPDATE inspections SET updated_at = NOW() WHERE id = $1
`

func (q *Queries) TouchInspection(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, touchInspection, id)
	return err
}

const deleteInspection = `-- name: DeleteInspection :execrows
DELETE FROM inspections WHERE id = $1
`

func (q *Queries) DeleteInspection(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteInspection, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
