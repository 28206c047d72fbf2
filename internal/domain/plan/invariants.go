package plan

import "fmt"

// InvariantMins carries the configured minimum lengths the structural checks
// need; both come from PolicySettings.
type InvariantMins struct {
	AttentionMinLengths map[string]int
	GapAnalysisMin      int
}

// CheckInvariants verifies the cross-field invariants that must hold after
// every committed transition. Services run it before writing; tests run it
// after every state-machine table case. A violation here is an engine bug,
// not caller input error, hence plain errors rather than ValidationError.
func CheckInvariants(s Snapshot, mins InvariantMins) error {
	if s.QualityScore != nil && !s.Status.Terminal() {
		return fmt.Errorf("quality score set while status is %s", s.Status)
	}

	switch d := s.Detail.(type) {
	case Blocked:
		if s.Status != StatusBlocked {
			return fmt.Errorf("blocker fields present while status is %s", s.Status)
		}
		if d.Category == "" {
			return fmt.Errorf("blocked plan has no blocker category")
		}
		min := mins.AttentionMinLengths[d.Tier]
		if len(d.Reason) < min {
			return fmt.Errorf("blocker reason shorter than tier %s minimum %d", d.Tier, min)
		}
	case NotAchieved:
		if s.Status != StatusNotAchieved {
			return fmt.Errorf("gap fields present while status is %s", s.Status)
		}
		if d.GapCategory == "" {
			return fmt.Errorf("not-achieved plan has no gap category")
		}
		if len(d.GapAnalysis) < mins.GapAnalysisMin {
			return fmt.Errorf("gap analysis shorter than minimum %d", mins.GapAnalysisMin)
		}
	case NoDetail, nil:
		if s.Status == StatusBlocked {
			return fmt.Errorf("blocked plan carries no blocker detail")
		}
		if s.Status == StatusNotAchieved {
			return fmt.Errorf("not-achieved plan carries no gap detail")
		}
	}

	if s.IsDropPending {
		if s.Status != StatusNotAchieved {
			return fmt.Errorf("drop pending while status is %s", s.Status)
		}
		if s.ResolutionType == nil || *s.ResolutionType != ResolutionDropped {
			return fmt.Errorf("drop pending without dropped resolution")
		}
	}

	return nil
}
