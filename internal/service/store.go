// Package service contains the business logic layer.
//
// This file declares the persistence contracts the services depend on.
// *repository.Store satisfies all of them.
package service

import (
	"context"
	"time"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/google/uuid"
)

// InspectionStore persists inspections and their instances.
type InspectionStore interface {
	CreateInspection(ctx context.Context, insp *domain.Inspection) error
	GetInspection(ctx context.Context, id uuid.UUID) (*domain.Inspection, error)
	ListInspections(ctx context.Context, limit, offset int) ([]domain.Inspection, error)
	DeleteInspection(ctx context.Context, id uuid.UUID) error
	AddInstance(ctx context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error
	SaveInstance(ctx context.Context, inspectionID uuid.UUID, inst *domain.PoiInstance) error
}

// AccessStore persists delegated access grants.
type AccessStore interface {
	ReplaceDelegatedAccess(ctx context.Context, access *domain.DelegatedAccess) error
	GetDelegatedAccess(ctx context.Context, token string) (*domain.DelegatedAccess, error)
}

// ReportStore records generated reports.
type ReportStore interface {
	CreateReport(ctx context.Context, r *domain.Report) error
	ListReports(ctx context.Context, inspectionID uuid.UUID) ([]domain.Report, error)
}

// Store is the full persistence contract.
type Store interface {
	InspectionStore
	AccessStore
	ReportStore
}

// Clock returns the current time.
type Clock func() time.Time
