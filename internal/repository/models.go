package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Inspection struct {
	ID                uuid.UUID
	EstablishmentName string
	Address           string
	InspectionType    string
	InspectionDate    time.Time
	Metadata          pqtype.NullRawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type PoiInstance struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	PoiID        string
	Position     int32
	CurrentPhase int32
	RiskLevel    string
	DeadlineDays sql.NullInt32
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type InspectionPhase struct {
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

type DelegatedAccessToken struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	Token        string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

type Report struct {
	ID           uuid.UUID
	InspectionID uuid.UUID
	Theme        string
	StorageKey   string
	Filename     string
	PageCount    int32
	SizeBytes    int64
	GeneratedAt  time.Time
}

type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}
