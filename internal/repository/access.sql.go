package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const deleteDelegatedAccessByInspection = `-- name: DeleteDelegatedAccessByInspection :exec
DELETE FROM delegated_access_tokens WHERE inspection_id = $1
`

func (q *Queries) DeleteDelegatedAccessByInspection(ctx context.Context, inspectionID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteDelegatedAccessByInspection, inspectionID)
	return err
}

const createDelegatedAccess = `-- name: CreateDelegatedAccess :one
INSERT INTO delegated_access_tokens (id, inspection_id, token, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, inspection_id, token, expires_at, created_at
`

type CreateDelegatedAccessParams struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	Token        string
	ExpiresAt    time.Time
}

func (q *Queries) CreateDelegatedAccess(ctx context.Context, arg CreateDelegatedAccessParams) (DelegatedAccessToken, error) {
	row := q.db.QueryRowContext(ctx, createDelegatedAccess,
		arg.ID,
		arg.InspectionID,
		arg.Token,
		arg.ExpiresAt,
	)
	var i DelegatedAccessToken
	err := row.Scan(
		&i.ID,
		&i.InspectionID,
		&i.Token,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

const getDelegatedAccessByToken = `-- name: GetDelegatedAccessByToken :one
SELECT id, inspection_id, token, expires_at, created_at
FROM delegated_access_tokens
WHERE token = $1
`

func (q *Queries) GetDelegatedAccessByToken(ctx context.Context, token string) (DelegatedAccessToken, error) {
	row := q.db.QueryRowContext(ctx, getDelegatedAccessByToken, token)
	var i DelegatedAccessToken
	err := row.Scan(
		&i.ID,
		&i.InspectionID,
		&i.Token,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}
