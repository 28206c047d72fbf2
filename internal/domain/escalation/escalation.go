// Package escalation governs entry into and exit from the Blocked state:
// which attention tiers a caller may raise to, how much justification each
// tier demands, and how resolutions are labeled for the timeline.
package escalation

import (
	"fmt"
	"strings"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
)

// Attention tiers, lowest to highest. TierLeader is the self-escalation
// tier a department leader cannot raise to; TierExecutive feeds the
// separate review queue.
const (
	TierLeader    = "leader_attention"
	TierManager   = "management_attention"
	TierDirector  = "director_attention"
	TierExecutive = "executive_attention"
)

// Config is the escalation slice of PolicySettings. MinReasonLen holds the
// per-tier justification floor; higher tiers carry larger values, but the
// numbers themselves are administrator configuration.
type Config struct {
	Categories   []string
	MinReasonLen map[string]int
}

// TiersFor returns the attention tiers a role may raise to, in ascending
// order. A leader never sees the tier that escalates to themselves.
func TiersFor(role string) []string {
	switch role {
	case "pic":
		return []string{TierLeader, TierManager}
	case "leader":
		return []string{TierManager, TierDirector, TierExecutive}
	case "admin":
		return []string{TierLeader, TierManager, TierDirector, TierExecutive}
	default:
		return nil
	}
}

func tierAvailable(role, tier string) bool {
	for _, t := range TiersFor(role) {
		if t == tier {
			return true
		}
	}
	return false
}

// RaiseInput is the payload for entering Blocked.
type RaiseInput struct {
	Role     string
	Category string
	Tier     string
	Reason   string
}

// ValidateRaise checks a blocker report and returns the Blocked detail to
// commit. All checks complete before any write.
func ValidateRaise(in RaiseInput, cfg Config) (plan.Blocked, error) {
	if len(cfg.Categories) == 0 {
		return plan.Blocked{}, &plan.PolicyConfigError{Setting: "blocker_categories"}
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return plan.Blocked{}, plan.NewValidationError("blocker_category", "a blocker category is required")
	}
	if !containsFold(cfg.Categories, category) {
		return plan.Blocked{}, plan.NewValidationError("blocker_category", fmt.Sprintf("unknown category %q", category))
	}
	if in.Tier == "" {
		return plan.Blocked{}, plan.NewValidationError("attention_level", "an attention level is required")
	}
	if !tierAvailable(in.Role, in.Tier) {
		return plan.Blocked{}, &plan.PermissionError{
			Capability: "escalate:" + in.Tier,
			Reason:     fmt.Sprintf("attention level %s is not available to role %s", in.Tier, in.Role),
		}
	}
	min, ok := cfg.MinReasonLen[in.Tier]
	if !ok {
		return plan.Blocked{}, &plan.PolicyConfigError{Setting: "attention_min_lengths." + in.Tier}
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) < min {
		return plan.Blocked{}, plan.NewLengthError("blocker_reason", min, len(reason))
	}
	return plan.Blocked{Category: category, Reason: reason, Tier: in.Tier}, nil
}

// Resolution describes how a plan left the Blocked state, labeled for the
// timeline. Manual resolutions carry the resolver's note; a direct jump to
// a terminal status without an explicit resolve step is auto-resolved and
// must be distinguishable in any log or notification.
type Resolution struct {
	Message      string
	Marker       string
	AutoResolved bool
}

// ValidateResolve checks a manual exit from Blocked. When no separate
// progress note is supplied, the resolution note is promoted to the
// progress log with a distinguishing marker.
func ValidateResolve(resolutionNote, progressNote string) (Resolution, error) {
	note := strings.TrimSpace(resolutionNote)
	if len(note) < plan.MinNoteLen {
		return Resolution{}, plan.NewLengthError("resolution_note", plan.MinNoteLen, len(note))
	}
	if progress := strings.TrimSpace(progressNote); progress != "" {
		if len(progress) < plan.MinNoteLen {
			return Resolution{}, plan.NewLengthError("progress_note", plan.MinNoteLen, len(progress))
		}
		return Resolution{Message: progress}, nil
	}
	return Resolution{Message: note, Marker: "resolution_note"}, nil
}

// AutoResolution labels a terminal jump that skipped the explicit resolve
// step.
func AutoResolution(target plan.Status) Resolution {
	return Resolution{
		Message:      fmt.Sprintf("blocker closed automatically on transition to %s", target),
		Marker:       "auto_resolved",
		AutoResolved: true,
	}
}

// NeedsExecReview reports whether a raise at the given tier must surface in
// the separate review queue.
func NeedsExecReview(tier string) bool {
	return tier == TierExecutive
}

// ReviewQueueNote is the structured audit note appended when an escalation
// is resolved from the review queue; the alert flag is cleared separately
// from the blocker fields.
func ReviewQueueNote(resolver, note string) string {
	return fmt.Sprintf("executive review closed by %s: %s", resolver, strings.TrimSpace(note))
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
