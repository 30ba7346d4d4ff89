package repository

import (
	"context"

	"github.com/google/uuid"
)

const createReport = `-- name: CreateReport :one
INSERT INTO reports (id, inspection_id, theme, storage_key, filename, page_count, size_bytes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, inspection_id, theme, storage_key, filename, page_count, size_bytes, generated_at
`

type CreateReportParams struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	Theme        string
	StorageKey   string
	Filename     string
	PageCount    int32
	SizeBytes    int64
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, createReport,
		arg.ID,
		arg.InspectionID,
		arg.Theme,
		arg.StorageKey,
		arg.Filename,
		arg.PageCount,
		arg.SizeBytes,
	)
	var i Report
	err := row.Scan(
		&i.ID,
		&i.InspectionID,
		&i.Theme,
		&i.StorageKey,
		&i.Filename,
		&i.PageCount,
		&i.SizeBytes,
		&i.GeneratedAt,
	)
	return i, err
}

const listReportsByInspection = `-- name: ListReportsByInspection :many
SELECT id, inspection_id, theme, storage_key, filename, page_count, size_bytes, generated_at
FROM reports
WHERE inspection_id = $1
ORDER BY generated_at DESC
`

func (q *Queries) ListReportsByInspection(ctx context.Context, inspectionID uuid.UUID) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReportsByInspection, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Report
	for rows.Next() {
		var i Report
		if err := rows.Scan(
			&i.ID,
			&i.InspectionID,
			&i.Theme,
			&i.StorageKey,
			&i.Filename,
			&i.PageCount,
			&i.SizeBytes,
			&i.GeneratedAt,
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
