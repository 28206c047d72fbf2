// Package grading converts a numeric quality score plus the plan's priority
// bucket into an achievement verdict. Strict mode compares the clamped
// score against a per-bucket target capped by the plan's maximum possible
// score; lenient mode treats approval as achievement and keeps the score
// informational.
package grading

import (
	"fmt"
	"strings"
	"time"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
)

type Bucket string

const (
	BucketLow       Bucket = "low"
	BucketMedium    Bucket = "medium"
	BucketHigh      Bucket = "high"
	BucketUltraHigh Bucket = "ultra_high"
)

// Rank orders buckets for the drop-approval comparison.
func (b Bucket) Rank() int {
	switch b {
	case BucketUltraHigh:
		return 3
	case BucketHigh:
		return 2
	case BucketMedium:
		return 1
	default:
		return 0
	}
}

// Classify derives the priority bucket from the plan's free-text category by
// case-insensitive token matching. "Ultra High" is checked before "High" so
// the longer label wins. Unrecognized categories fall through to Low; that
// fallback is an accepted data-quality compromise carried over from the
// field data, so callers should log it rather than reject.
func Classify(category string) Bucket {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "ultra high"), strings.Contains(c, "ultra-high"), strings.Contains(c, "ultrahigh"):
		return BucketUltraHigh
	case strings.Contains(c, "high"):
		return BucketHigh
	case strings.Contains(c, "medium"), strings.Contains(c, "mid"):
		return BucketMedium
	default:
		return BucketLow
	}
}

// Recognized reports whether the category actually matched a bucket token,
// so the Low fallback can be surfaced as a data-quality signal.
func Recognized(category string) bool {
	c := strings.ToLower(category)
	for _, token := range []string{"ultra high", "ultra-high", "ultrahigh", "high", "medium", "mid", "low"} {
		if strings.Contains(c, token) {
			return true
		}
	}
	return false
}

// DefaultCap is the score ceiling for plans without an inherited penalty.
const DefaultCap = 100

// EffectiveCap resolves the plan's penalty ceiling.
func EffectiveCap(maxPossible *int) int {
	if maxPossible == nil {
		return DefaultCap
	}
	if *maxPossible > DefaultCap {
		return DefaultCap
	}
	if *maxPossible < 0 {
		return 0
	}
	return *maxPossible
}

// Clamp forces a raw score into [0, cap]. Idempotent: clamping a clamped
// value is a no-op.
func Clamp(score, cap int) int {
	if score < 0 {
		return 0
	}
	if score > cap {
		return cap
	}
	return score
}

// Policy is the grading slice of PolicySettings.
type Policy struct {
	Strict     bool
	Thresholds map[Bucket]int
	// CarryOverPenalty is subtracted from the effective cap when a failed
	// grade is forced into carry-over, bounding the successor's ceiling.
	CarryOverPenalty      int
	RevisionWindowMaxDays int
}

// Outcome is the result of evaluating a score. When VerdictRequired is set
// the grade is incomplete: strict evaluation failed and the grader must
// choose and confirm a verdict before anything commits.
type Outcome struct {
	Score           int
	Cap             int
	Bucket          Bucket
	Target          int
	Status          plan.Status
	VerdictRequired bool
	// Overwrite marks a re-grade of an already-scored plan; identical
	// rules, but the mutation must surface as an overwrite.
	Overwrite bool
}

// Evaluate scores a plan. The caller guarantees the snapshot is fresh; the
// recall check against server state happens in the service layer before
// this runs.
func Evaluate(s plan.Snapshot, rawScore int, p Policy) (Outcome, error) {
	cap := EffectiveCap(s.MaxPossibleScore)
	out := Outcome{
		Score:     Clamp(rawScore, cap),
		Cap:       cap,
		Bucket:    Classify(s.Category),
		Overwrite: s.Graded(),
	}

	if !p.Strict {
		// Lenient mode: approval is achievement, score is informational.
		out.Status = plan.StatusAchieved
		return out, nil
	}

	threshold, ok := p.Thresholds[out.Bucket]
	if !ok {
		return Outcome{}, &plan.PolicyConfigError{Setting: fmt.Sprintf("thresholds.%s", out.Bucket)}
	}
	// Fairness cap: a penalized carry-over is never held to a bar above
	// its own ceiling.
	out.Target = threshold
	if cap < threshold {
		out.Target = cap
	}

	if out.Score >= out.Target {
		out.Status = plan.StatusAchieved
		return out, nil
	}
	out.Status = plan.StatusNotAchieved
	out.VerdictRequired = true
	return out, nil
}

// Verdict is the grader's explicit decision for a strict-mode miss.
type Verdict string

const (
	VerdictRevision       Verdict = "revision"
	VerdictForceCarryOver Verdict = "force_carry_over"
	VerdictMarkFailed     Verdict = "mark_failed"
)

// VerdictInput confirms a pending NotAchieved grade.
type VerdictInput struct {
	Verdict      Verdict
	Feedback     string
	RevisionDays int
}

// VerdictOutcome is the committed effect of a confirmed verdict.
type VerdictOutcome struct {
	// Revision: reopen the record for rework.
	ClearScore  bool
	UnlockUntil *time.Time
	// ForceCarryOver: commit NotAchieved and spawn a successor whose
	// ceiling is reduced by the penalty.
	CommitNotAchieved bool
	SpawnSuccessor    bool
	SuccessorCap      int
	Feedback          string
}

// ApplyVerdict resolves a pending verdict. now anchors the revision grace
// window.
func ApplyVerdict(s plan.Snapshot, in VerdictInput, p Policy, now time.Time) (VerdictOutcome, error) {
	switch in.Verdict {
	case VerdictRevision:
		if strings.TrimSpace(in.Feedback) == "" {
			return VerdictOutcome{}, plan.NewValidationError("feedback", "revision requires feedback for the assignee")
		}
		maxDays := p.RevisionWindowMaxDays
		if maxDays <= 0 || maxDays > 14 {
			maxDays = 14
		}
		if in.RevisionDays < 1 || in.RevisionDays > maxDays {
			return VerdictOutcome{}, plan.NewValidationError("revision_days",
				fmt.Sprintf("revision window must be between 1 and %d days", maxDays))
		}
		until := now.AddDate(0, 0, in.RevisionDays)
		return VerdictOutcome{ClearScore: true, UnlockUntil: &until, Feedback: in.Feedback}, nil
	case VerdictForceCarryOver:
		cap := EffectiveCap(s.MaxPossibleScore) - p.CarryOverPenalty
		if cap < 0 {
			cap = 0
		}
		return VerdictOutcome{
			CommitNotAchieved: true,
			SpawnSuccessor:    true,
			SuccessorCap:      cap,
			Feedback:          in.Feedback,
		}, nil
	case VerdictMarkFailed:
		return VerdictOutcome{CommitNotAchieved: true, Feedback: in.Feedback}, nil
	default:
		return VerdictOutcome{}, plan.NewValidationError("verdict", fmt.Sprintf("unknown verdict %q", in.Verdict))
	}
}
