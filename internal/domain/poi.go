package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhaseCount is the number of phase slots every POI instance owns.
const PhaseCount = 3

// Phase indexes.
const (
	PhaseFinding     = 0
	PhaseRemediation = 1
	PhaseValidation  = 2
	PhaseComplete    = 3
)

// Defaults applied when an instance is classified without explicit values.
const (
	DefaultRiskLevel    = RiskMedium
	DefaultDeadlineDays = 30
)

// NotApplicableComment is stored on phase 0 when a POI does not exist at the site.
const NotApplicableComment = "Não se aplica ao local."

// =============================================================================
// Risk Level
// =============================================================================

// RiskLevel is the severity assigned to a finding during phase 0.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid returns true if the risk level is a recognized value.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskCritical, RiskMedium, RiskLow:
		return true
	}
	return false
}

// Rank orders risk levels for report sequencing; lower sorts first.
// Unknown or unset levels rank as medium.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskCritical:
		return 0
	case RiskLow:
		return 2
	default:
		return 1
	}
}

// Label returns the Portuguese badge label.
func (r RiskLevel) Label() string {
	switch r {
	case RiskCritical:
		return "CRÍTICO"
	case RiskLow:
		return "BAIXO"
	default:
		return "MÉDIO"
	}
}

// =============================================================================
// Phase Status
// =============================================================================

// PhaseStatus is the judgment recorded on a phase photo.
type PhaseStatus string

const (
	PhaseStatusPending         PhaseStatus = "pending"
	PhaseStatusSatisfactory    PhaseStatus = "satisfactory"
	PhaseStatusNotSatisfactory PhaseStatus = "not_satisfactory"
	PhaseStatusNotApplicable   PhaseStatus = "not_applicable"
)

// String returns the string representation of the status.
func (s PhaseStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s PhaseStatus) IsValid() bool {
	switch s {
	case PhaseStatusPending, PhaseStatusSatisfactory,
		PhaseStatusNotSatisfactory, PhaseStatusNotApplicable:
		return true
	}
	return false
}

// IsJudgment reports whether the status is a final verdict for phases 1 and 2.
func (s PhaseStatus) IsJudgment() bool {
	return s == PhaseStatusSatisfactory || s == PhaseStatusNotSatisfactory
}

// =============================================================================
// Phase Photo
// =============================================================================

// GeoLocation is a latitude/longitude pair recorded with a capture.
type GeoLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PhasePhoto is the evidence recorded for one phase of an instance.
// DataURL is an opaque reference to the stored image; empty means no photo,
// which is only legal at phase 0 with status not_applicable.
type PhasePhoto struct {
	ID                        uuid.UUID    `json:"id"`
	DataURL                   string       `json:"dataUrl,omitempty"`
	TimestampMillis           int64        `json:"timestamp"`
	Location                  *GeoLocation `json:"location,omitempty"`
	SelectedRecommendationIDs []string     `json:"selectedRecommendationIds"`
	Comment                   string       `json:"comment"`
	Status                    PhaseStatus  `json:"status"`
}

// HasPhoto reports whether the phase references an image.
func (p *PhasePhoto) HasPhoto() bool {
	return p != nil && p.DataURL != ""
}

// Clone returns a deep copy of the photo.
func (p *PhasePhoto) Clone() *PhasePhoto {
	if p == nil {
		return nil
	}
	c := *p
	if p.Location != nil {
		loc := *p.Location
		c.Location = &loc
	}
	if p.SelectedRecommendationIDs != nil {
		c.SelectedRecommendationIDs = append([]string{}, p.SelectedRecommendationIDs...)
	}
	return &c
}

// =============================================================================
// POI Instance
// =============================================================================

// PoiInstance is one occurrence of a catalog POI inside an inspection.
type PoiInstance struct {
	ID           uuid.UUID               `json:"instanceId"`
	PoiID        string                  `json:"poiId"`
	CurrentPhase int                     `json:"currentPhase"`
	RiskLevel    RiskLevel               `json:"riskLevel,omitempty"`
	DeadlineDays *int                    `json:"deadlineDays,omitempty"`
	Phases       [PhaseCount]*PhasePhoto `json:"phases"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// NewPoiInstance creates an empty instance at phase 0.
func NewPoiInstance(poiID string) PoiInstance {
	return PoiInstance{
		ID:    uuid.New(),
		PoiID: poiID,
	}
}

// Finding returns the phase 0 photo, or nil.
func (p *PoiInstance) Finding() *PhasePhoto {
	return p.Phases[PhaseFinding]
}

// IsNotApplicable reports whether phase 0 was marked not applicable.
func (p *PoiInstance) IsNotApplicable() bool {
	f := p.Finding()
	return f != nil && f.Status == PhaseStatusNotApplicable
}

// IsComplete reports whether all three phases were submitted.
func (p *PoiInstance) IsComplete() bool {
	return p.CurrentPhase >= PhaseComplete
}

// Deadline returns the deadline in days and whether one is set.
func (p *PoiInstance) Deadline() (int, bool) {
	if p.DeadlineDays == nil {
		return 0, false
	}
	return *p.DeadlineDays, true
}

// Clone returns a deep copy of the instance.
func (p *PoiInstance) Clone() PoiInstance {
	c := *p
	if p.DeadlineDays != nil {
		d := *p.DeadlineDays
		c.DeadlineDays = &d
	}
	for i := range p.Phases {
		c.Phases[i] = p.Phases[i].Clone()
	}
	return c
}

// =============================================================================
// Phase Submission
// =============================================================================

// SubmissionOrigin identifies who produced a phase submission.
type SubmissionOrigin string

const (
	// OriginInspector is a submission made by the inspector.
	OriginInspector SubmissionOrigin = "inspector"
	// OriginDelegated is a capture made through a delegated access link.
	// Delegated captures never advance the instance past phase 0.
	OriginDelegated SubmissionOrigin = "delegated"
)

// PhaseSubmission is the payload accepted by the phase state machine.
type PhaseSubmission struct {
	DataURL                   string
	TimestampMillis           int64
	Location                  *GeoLocation
	SelectedRecommendationIDs []string
	Comment                   string
	Status                    PhaseStatus
	NotApplicable             bool
	Origin                    SubmissionOrigin

	// Classification applied at phase 0. Zero values take the defaults.
	RiskLevel    RiskLevel
	DeadlineDays int

	// FinalizeReview closes a delegated review edit and advances the
	// instance to phase 1.
	FinalizeReview bool
}
