// Package resolution decides what happens to a failed plan: carry it into
// the next month or drop it, with drops conditionally gated behind
// approval. It also materializes carry-over successors.
package resolution

import (
	"fmt"
	"strings"

	"github.com/kertaswork/plantrack-backend/internal/domain/grading"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
)

// Policy is the resolution slice of PolicySettings.
type Policy struct {
	// GapAnalysisMin is the baseline justification floor.
	GapAnalysisMin int
	// DropJustificationMin replaces the baseline when the drop needs
	// approval; the stricter gate demands a fuller writeup.
	DropJustificationMin int
	// ApprovalMinBucket: drops at or above this bucket require approval.
	// Empty disables the gate entirely.
	ApprovalMinBucket grading.Bucket
	GapCategories     []string
}

// ApprovalRequired is the predicate deciding whether dropping this plan
// needs an approver.
func ApprovalRequired(bucket grading.Bucket, p Policy) bool {
	if p.ApprovalMinBucket == "" {
		return false
	}
	return bucket.Rank() >= p.ApprovalMinBucket.Rank()
}

// Input is the follow-up payload accompanying a transition to NotAchieved.
type Input struct {
	FollowUp      plan.FollowUp
	GapCategory   string
	GapAnalysis   string
	SpecifyReason string
}

// Decision is the validated outcome: the NotAchieved detail to commit plus
// the resolution branch.
type Decision struct {
	Detail         plan.NotAchieved
	ResolutionType plan.ResolutionType
	IsDropPending  bool
	// RequiredMin echoes the justification floor that applied, for
	// error reporting and the timeline.
	RequiredMin int
}

// Decide validates the follow-up decision for a plan entering NotAchieved.
// bucket is the plan's classified priority.
func Decide(in Input, bucket grading.Bucket, p Policy) (Decision, error) {
	if len(p.GapCategories) == 0 {
		return Decision{}, &plan.PolicyConfigError{Setting: "gap_categories"}
	}
	category := strings.TrimSpace(in.GapCategory)
	if category == "" {
		return Decision{}, plan.NewValidationError("gap_category", "a gap category is required")
	}
	if !containsFold(p.GapCategories, category) {
		return Decision{}, plan.NewValidationError("gap_category", fmt.Sprintf("unknown category %q", category))
	}

	analysis := strings.TrimSpace(in.GapAnalysis)
	detail := plan.NotAchieved{
		GapCategory:   category,
		GapAnalysis:   analysis,
		SpecifyReason: strings.TrimSpace(in.SpecifyReason),
		FollowUp:      in.FollowUp,
	}

	switch in.FollowUp {
	case plan.FollowUpCarryOver:
		if len(analysis) < p.GapAnalysisMin {
			return Decision{}, plan.NewLengthError("gap_analysis", p.GapAnalysisMin, len(analysis))
		}
		return Decision{
			Detail:         detail,
			ResolutionType: plan.ResolutionCarriedOver,
			RequiredMin:    p.GapAnalysisMin,
		}, nil
	case plan.FollowUpDrop:
		needsApproval := ApprovalRequired(bucket, p)
		min := p.GapAnalysisMin
		if needsApproval {
			min = p.DropJustificationMin
		}
		if len(analysis) < min {
			return Decision{}, plan.NewLengthError("gap_analysis", min, len(analysis))
		}
		return Decision{
			Detail:         detail,
			ResolutionType: plan.ResolutionDropped,
			IsDropPending:  needsApproval,
			RequiredMin:    min,
		}, nil
	case "":
		return Decision{}, plan.NewValidationError("follow_up", "a follow-up decision (carry over or drop) is required")
	default:
		return Decision{}, plan.NewValidationError("follow_up", fmt.Sprintf("unknown follow-up %q", in.FollowUp))
	}
}

// Successor describes the next-month copy of a carried-over plan.
// Evidence and score never carry across; a grading-forced carry-over passes
// its penalized ceiling down through MaxPossibleScore.
type Successor struct {
	Name             string
	Indicator        string
	Category         string
	Month            int
	Year             int
	MaxPossibleScore *int
	CarriedFrom      plan.Snapshot
}

// BuildSuccessor materializes the carry-over copy. penaltyCap is nil for a
// plain carry-over and set when a force-carry-over verdict bounded the
// successor's ceiling.
func BuildSuccessor(s plan.Snapshot, indicator string, penaltyCap *int) Successor {
	month, year := nextPeriod(s.Month, s.Year)
	return Successor{
		Name:             s.Name,
		Indicator:        indicator,
		Category:         s.Category,
		Month:            month,
		Year:             year,
		MaxPossibleScore: penaltyCap,
		CarriedFrom:      s,
	}
}

func nextPeriod(month, year int) (int, int) {
	if month >= 12 {
		return 1, year + 1
	}
	return month + 1, year
}

// DropReview is the change set produced by an approval authority acting on
// a pending drop.
type DropReview struct {
	Status         plan.Status
	ResolutionType *plan.ResolutionType
	IsDropPending  bool
	// ZeroScore finalizes an approved drop at score 0.
	ZeroScore bool
	// ObligeCarryOver marks a rejected drop: the plan returns to Open and
	// must be carried over instead.
	ObligeCarryOver bool
}

// ApproveDrop finalizes a pending drop as NotAchieved with score zero.
func ApproveDrop(s plan.Snapshot) (DropReview, error) {
	if err := checkPending(s); err != nil {
		return DropReview{}, err
	}
	dropped := plan.ResolutionDropped
	return DropReview{
		Status:         plan.StatusNotAchieved,
		ResolutionType: &dropped,
		ZeroScore:      true,
	}, nil
}

// RejectDrop forces the plan back to Open, clears the drop flags, and
// obligates a carry-over.
func RejectDrop(s plan.Snapshot) (DropReview, error) {
	if err := checkPending(s); err != nil {
		return DropReview{}, err
	}
	return DropReview{
		Status:          plan.StatusOpen,
		ResolutionType:  nil,
		ObligeCarryOver: true,
	}, nil
}

func checkPending(s plan.Snapshot) error {
	if !s.IsDropPending {
		return &plan.ConflictError{Reason: "plan has no pending drop request"}
	}
	if s.Status != plan.StatusNotAchieved || s.ResolutionType == nil || *s.ResolutionType != plan.ResolutionDropped {
		return &plan.ConflictError{Reason: "drop request is no longer consistent with plan state"}
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
