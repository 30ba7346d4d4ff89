// Package domain contains core business types and interfaces.
//
// This file defines the Report domain types for compiled technical reports.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Report Theme
// =============================================================================

// ReportTheme selects the visual theme of a compiled report.
type ReportTheme string

const (
	// ReportThemeStandard is the light theme with a bordered cover card.
	ReportThemeStandard ReportTheme = "standard"

	// ReportThemePremium is the dark theme with gold accents.
	ReportThemePremium ReportTheme = "premium"
)

// String returns the string representation of the theme.
func (t ReportTheme) String() string {
	return string(t)
}

// IsValid returns true if the theme is a recognized value.
func (t ReportTheme) IsValid() bool {
	switch t {
	case ReportThemeStandard, ReportThemePremium:
		return true
	}
	return false
}

// ParseReportTheme parses a theme name, defaulting to standard when empty.
func ParseReportTheme(s string) (ReportTheme, error) {
	if s == "" {
		return ReportThemeStandard, nil
	}
	t := ReportTheme(s)
	if !t.IsValid() {
		return "", Errorf(EINVALID, "report.parse_theme", "unknown report theme %q", s)
	}
	return t, nil
}

// ReportContentType is the MIME type of compiled reports.
const ReportContentType = "application/pdf"

// =============================================================================
// Report Domain Type
// =============================================================================

// Report represents a generated report stored in object storage.
type Report struct {
	ID           uuid.UUID   `json:"id"`
	InspectionID uuid.UUID   `json:"inspectionId"`
	Theme        ReportTheme `json:"theme"`
	StorageKey   string      `json:"storageKey"`
	Filename     string      `json:"filename"`
	PageCount    int         `json:"pageCount"`
	SizeBytes    int64       `json:"sizeBytes"`
	GeneratedAt  time.Time   `json:"generatedAt"`
}

// GenerateReportPayload is the job payload for asynchronous report generation.
type GenerateReportPayload struct {
	InspectionID uuid.UUID   `json:"inspection_id"`
	Theme        ReportTheme `json:"theme"`
}
