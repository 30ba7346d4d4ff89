package lifecycle

import "github.com/DukeRupert/vistoria/internal/domain"

// ComputeProgress summarizes the instances of an inspection.
//
// An instance counts as completed once all phases were submitted, or, for
// delegated inspections, as soon as the contact captured its photo. Pending
// counts instances with neither a photo nor a not applicable mark.
func ComputeProgress(insp *domain.Inspection) domain.Progress {
	p := domain.Progress{Total: len(insp.Instances)}
	for i := range insp.Instances {
		inst := &insp.Instances[i]
		f := inst.Finding()

		switch {
		case inst.IsNotApplicable():
			p.NotApplicable++
		case !f.HasPhoto() && inst.CurrentPhase == domain.PhaseFinding:
			p.Pending++
		}
		if inst.IsComplete() || (insp.IsDelegated() && f.HasPhoto()) {
			p.Completed++
		}
		if IsReportable(inst) {
			p.Reportable++
		}
	}
	if p.Total > 0 {
		p.Percent = p.Completed * 100 / p.Total
	}
	return p
}
