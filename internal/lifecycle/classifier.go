package lifecycle

import (
	"slices"

	"github.com/DukeRupert/vistoria/internal/domain"
)

// Classifier attaches risk level and remediation deadline to instances.
type Classifier struct{}

// Resolve validates a risk level and deadline, applying the defaults
// (medium, 30 days) to zero values.
func (Classifier) Resolve(level domain.RiskLevel, deadlineDays int) (domain.RiskLevel, int, error) {
	const op = "lifecycle.classify"

	if level == "" {
		level = domain.DefaultRiskLevel
	}
	if !level.IsValid() {
		return "", 0, domain.Errorf(domain.EINVALID, op, "unknown risk level %q", level)
	}
	if deadlineDays < 0 {
		return "", 0, domain.Invalid(op, "deadline must not be negative")
	}
	if deadlineDays == 0 {
		deadlineDays = domain.DefaultDeadlineDays
	}
	return level, deadlineDays, nil
}

// Classify sets the risk level and deadline of inst. Classification is only
// possible while the instance is still at phase 0.
func (c Classifier) Classify(inst *domain.PoiInstance, level domain.RiskLevel, deadlineDays int) error {
	const op = "lifecycle.classify"

	if inst.CurrentPhase != domain.PhaseFinding {
		return domain.InvalidTransition(op, domain.PhaseFinding, inst.CurrentPhase)
	}
	level, days, err := c.Resolve(level, deadlineDays)
	if err != nil {
		return err
	}
	inst.RiskLevel = level
	inst.DeadlineDays = &days
	return nil
}

// SortByRisk orders instances critical first, then medium, then low.
// Instances sharing a level keep their relative order.
func SortByRisk(instances []domain.PoiInstance) {
	slices.SortStableFunc(instances, func(a, b domain.PoiInstance) int {
		return a.RiskLevel.Rank() - b.RiskLevel.Rank()
	})
}
