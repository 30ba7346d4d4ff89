// Package lifecycle implements the per-instance phase state machine and the
// risk classification rules of POI instances.
//
// An instance moves through finding (0), remediation (1) and validation (2)
// until it is complete (3). Marking phase 0 not applicable freezes it.
package lifecycle

import (
	"time"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/google/uuid"
)

// Machine validates and applies phase submissions.
// It holds no per-instance state and is safe for concurrent use.
type Machine struct {
	catalog    *catalog.Catalog
	classifier Classifier
	now        func() time.Time
}

// NewMachine creates a Machine validating recommendations against cat.
func NewMachine(cat *catalog.Catalog) *Machine {
	return &Machine{
		catalog: cat,
		now:     time.Now,
	}
}

// WithClock returns a copy of the machine using now as its clock.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	c := *m
	c.now = now
	return &c
}

// Submit writes a phase of inst.
//
// The instance is only modified when the submission is accepted. For phases
// 1 and 2 a missing verdict is reported first, then sequencing (including
// the not applicable freeze), then a missing photo.
func (m *Machine) Submit(inspType domain.InspectionType, inst *domain.PoiInstance, phase int, sub domain.PhaseSubmission) error {
	const op = "lifecycle.submit"

	if phase < domain.PhaseFinding || phase > domain.PhaseValidation {
		return domain.InvalidTransition(op, phase, inst.CurrentPhase)
	}
	if phase == domain.PhaseFinding {
		return m.submitFinding(op, inspType, inst, sub)
	}
	return m.submitFollowUp(op, inst, phase, sub)
}

func (m *Machine) submitFinding(op string, inspType domain.InspectionType, inst *domain.PoiInstance, sub domain.PhaseSubmission) error {
	if !sub.NotApplicable && sub.DataURL == "" {
		return domain.MissingEvidence(op, domain.PhaseFinding)
	}

	origin := sub.Origin
	if origin == "" {
		origin = domain.OriginInspector
	}

	recs := sub.SelectedRecommendationIDs
	if sub.NotApplicable || origin == domain.OriginDelegated {
		recs = nil
	}
	if err := m.catalog.ValidateSelection(inst.PoiID, recs); err != nil {
		return err
	}

	if inst.IsNotApplicable() || inst.CurrentPhase != domain.PhaseFinding {
		return domain.InvalidTransition(op, domain.PhaseFinding, inst.CurrentPhase)
	}
	review := IsDelegatedReview(inspType, inst)

	risk, deadline := inst.RiskLevel, inst.DeadlineDays
	if origin == domain.OriginInspector && !sub.NotApplicable {
		level, days, err := m.classifier.Resolve(sub.RiskLevel, sub.DeadlineDays)
		if err != nil {
			return err
		}
		risk, deadline = level, &days
	} else if risk == "" || deadline == nil {
		days := domain.DefaultDeadlineDays
		if risk == "" {
			risk = domain.DefaultRiskLevel
		}
		if deadline == nil {
			deadline = &days
		}
	}

	photo := m.newPhoto(inst.Finding(), sub)
	photo.SelectedRecommendationIDs = append([]string{}, recs...)
	photo.Status = domain.PhaseStatusPending
	if sub.NotApplicable {
		photo.DataURL = ""
		photo.Status = domain.PhaseStatusNotApplicable
		if photo.Comment == "" {
			photo.Comment = domain.NotApplicableComment
		}
	}

	advance := origin == domain.OriginInspector && !sub.NotApplicable
	if review && !sub.FinalizeReview {
		advance = false
	}

	inst.Phases[domain.PhaseFinding] = photo
	inst.RiskLevel = risk
	inst.DeadlineDays = deadline
	if advance {
		inst.CurrentPhase = domain.PhaseRemediation
	}
	inst.UpdatedAt = m.now()
	return nil
}

func (m *Machine) submitFollowUp(op string, inst *domain.PoiInstance, phase int, sub domain.PhaseSubmission) error {
	if sub.NotApplicable {
		return domain.Invalid(op, "only the finding phase can be marked not applicable")
	}
	if !sub.Status.IsJudgment() {
		return domain.IncompleteJudgment(op, phase)
	}
	if sub.Origin == domain.OriginDelegated || inst.IsNotApplicable() || inst.CurrentPhase != phase {
		return domain.InvalidTransition(op, phase, inst.CurrentPhase)
	}
	if sub.DataURL == "" {
		return domain.MissingEvidence(op, phase)
	}

	photo := m.newPhoto(inst.Phases[phase], sub)
	photo.SelectedRecommendationIDs = []string{}
	photo.Status = sub.Status

	inst.Phases[phase] = photo
	inst.CurrentPhase = phase + 1
	inst.UpdatedAt = m.now()
	return nil
}

// newPhoto builds the photo written into a slot, keeping the id of the
// photo it replaces.
func (m *Machine) newPhoto(prev *domain.PhasePhoto, sub domain.PhaseSubmission) *domain.PhasePhoto {
	id := uuid.New()
	if prev != nil {
		id = prev.ID
	}
	ts := sub.TimestampMillis
	if ts == 0 {
		ts = m.now().UnixMilli()
	}
	var loc *domain.GeoLocation
	if sub.Location != nil {
		l := *sub.Location
		loc = &l
	}
	return &domain.PhasePhoto{
		ID:              id,
		DataURL:         sub.DataURL,
		TimestampMillis: ts,
		Location:        loc,
		Comment:         sub.Comment,
	}
}

// CanSubmit reports whether a submission carries what the phase requires.
// Handlers use it to disable saving before reaching Submit.
func CanSubmit(phase int, sub domain.PhaseSubmission) bool {
	switch phase {
	case domain.PhaseFinding:
		return sub.DataURL != "" || sub.NotApplicable
	case domain.PhaseRemediation, domain.PhaseValidation:
		return sub.DataURL != "" && sub.Status.IsJudgment()
	}
	return false
}

// IsDelegatedReview reports whether a phase 0 submission on inst is an
// in-place edit of a delegated capture rather than an advance.
func IsDelegatedReview(inspType domain.InspectionType, inst *domain.PoiInstance) bool {
	f := inst.Finding()
	return inspType == domain.InspectionTypeDelegated &&
		inst.CurrentPhase == domain.PhaseFinding &&
		f.HasPhoto() &&
		f.Status == domain.PhaseStatusPending
}

// IsReportable reports whether inst appears in a compiled report.
//
// Note: an instance with a phase 0 photo but no recommendations and still at
// phase 0 qualifies.
func IsReportable(inst *domain.PoiInstance) bool {
	f := inst.Finding()
	if f != nil && f.Status == domain.PhaseStatusNotApplicable {
		return false
	}
	if inst.CurrentPhase > domain.PhaseFinding {
		return true
	}
	if f == nil {
		return false
	}
	return len(f.SelectedRecommendationIDs) > 0 || f.DataURL != ""
}
