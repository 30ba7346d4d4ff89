// Package domain contains core business types and interfaces.
//
// This file defines the Inspection domain type and related types for
// managing establishment risk inspections.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Inspection Type
// =============================================================================

// InspectionType distinguishes inspections driven by the inspector on site
// from inspections whose findings are captured remotely by a contact at the
// establishment.
type InspectionType string

const (
	// InspectionTypeInternal is performed by the inspector. A POI type may
	// have several instances (occurrences).
	InspectionTypeInternal InspectionType = "internal"

	// InspectionTypeDelegated has its phase 0 captured by an external,
	// token-authenticated contact. Exactly one instance exists per POI type.
	InspectionTypeDelegated InspectionType = "delegated"
)

// String returns the string representation of the type.
func (t InspectionType) String() string {
	return string(t)
}

// IsValid returns true if the type is a recognized value.
func (t InspectionType) IsValid() bool {
	switch t {
	case InspectionTypeInternal, InspectionTypeDelegated:
		return true
	}
	return false
}

// Label returns the localized display label used on reports.
func (t InspectionType) Label() string {
	switch t {
	case InspectionTypeDelegated:
		return "Delegada"
	default:
		return "Interna"
	}
}

// =============================================================================
// Inspection Entity
// =============================================================================

// Inspection represents a risk inspection of a single establishment.
// It exclusively owns its POI instances.
type Inspection struct {
	ID                uuid.UUID      `json:"id"`
	EstablishmentName string         `json:"establishmentName"`
	Address           string         `json:"address"`
	Type              InspectionType `json:"type"`
	Date              time.Time      `json:"date"`
	Metadata          Metadata       `json:"metadata"`
	Instances         []PoiInstance  `json:"instances"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Metadata holds the optional structured details collected about the
// establishment. Zero values mean "not informed".
type Metadata struct {
	CNPJ             string  `json:"cnpj,omitempty"`
	ResponsibleName  string  `json:"responsibleName,omitempty"`
	ContactPhone     string  `json:"contactPhone,omitempty"`
	TotalArea        float64 `json:"totalArea,omitempty"`
	Floors           int     `json:"floors,omitempty"`
	ConstructionYear int     `json:"constructionYear,omitempty"`
	OperatingHours   string  `json:"operatingHours,omitempty"`
}

// IsDelegated reports whether phase 0 is captured by an external contact.
func (i *Inspection) IsDelegated() bool {
	return i.Type == InspectionTypeDelegated
}

// Site returns the part of the address after its last comma, trimmed.
// Returns "-" when the address has no comma.
func (i *Inspection) Site() string {
	idx := strings.LastIndex(i.Address, ",")
	if idx < 0 {
		return "-"
	}
	return strings.TrimSpace(i.Address[idx+1:])
}

// Instance returns the instance with the given ID, or nil.
func (i *Inspection) Instance(id uuid.UUID) *PoiInstance {
	for idx := range i.Instances {
		if i.Instances[idx].ID == id {
			return &i.Instances[idx]
		}
	}
	return nil
}

// InstanceForPOI returns the first instance referencing poiID, or nil.
// Delegated inspections hold at most one per POI.
func (i *Inspection) InstanceForPOI(poiID string) *PoiInstance {
	for idx := range i.Instances {
		if i.Instances[idx].PoiID == poiID {
			return &i.Instances[idx]
		}
	}
	return nil
}

// =============================================================================
// Parameters
// =============================================================================

// CreateInspectionParams contains the parameters for creating an inspection.
type CreateInspectionParams struct {
	EstablishmentName string
	Address           string
	Type              InspectionType
	Date              time.Time
	Metadata          Metadata
}

// Validate checks the creation parameters.
func (p CreateInspectionParams) Validate(op string) error {
	if strings.TrimSpace(p.EstablishmentName) == "" {
		return NewValidationError(op, "establishment_name", "Establishment name is required")
	}
	if strings.TrimSpace(p.Address) == "" {
		return NewValidationError(op, "address", "Address is required")
	}
	if !p.Type.IsValid() {
		return NewValidationError(op, "type", "Inspection type must be internal or delegated")
	}
	if p.Metadata.Floors < 0 {
		return NewValidationError(op, "floors", "Floors cannot be negative")
	}
	if p.Metadata.TotalArea < 0 {
		return NewValidationError(op, "total_area", "Total area cannot be negative")
	}
	return nil
}

// =============================================================================
// Progress
// =============================================================================

// Progress summarizes how far an inspection has come.
type Progress struct {
	Total         int `json:"total"`
	Completed     int `json:"completed"`
	NotApplicable int `json:"notApplicable"`
	Pending       int `json:"pending"`
	Reportable    int `json:"reportable"`
	Percent       int `json:"percent"`
}
