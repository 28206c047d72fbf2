// Package lock computes whether an action plan may currently be mutated.
// Two independent sources combine by OR: the submission lock (the plan has
// been handed over for grading) and the temporal lock (the reporting window
// for the plan's month has closed). Everything here is a pure function of
// the snapshot, the caller's capabilities, configuration, and a clock value
// passed in by the caller.
package lock

import (
	"fmt"
	"time"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
)

// Settings is the lock-relevant slice of PolicySettings.
type Settings struct {
	Enabled   bool
	CutoffDay int
}

// Override is one monthly schedule entry. ForceOpen wins over LockDate.
type Override struct {
	ForceOpen bool
	LockDate  *time.Time
}

// Input bundles everything Compute needs beyond the snapshot.
type Input struct {
	Caps     plan.Capabilities
	Settings Settings
	// MonthOverride is the schedule entry for the plan's (month, year),
	// nil when none exists.
	MonthOverride *Override
	// DateOverride is the admin-only session toggle that force-bypasses
	// the temporal lock. It is ignored for callers without the override
	// capability.
	DateOverride bool
	Now          time.Time
}

// Result is the full lock verdict. FieldsDisabled is the combined predicate
// consumers should gate mutations on; the split flags exist for display and
// for the audit trail (a bypassed temporal lock must be distinguishable
// from an unlocked one).
type Result struct {
	SubmissionLocked bool
	TemporalLocked   bool
	Bypassable       bool
	Bypassed         bool
	FieldsDisabled   bool
	Message          string
}

// Locked reports whether any lock source applies, before bypasses.
func (r Result) Locked() bool {
	return r.SubmissionLocked || r.TemporalLocked
}

// Compute evaluates both lock sources for one caller.
func Compute(s plan.Snapshot, in Input) Result {
	var r Result

	r.SubmissionLocked = submissionLocked(s, in.Caps)
	r.TemporalLocked = temporalLocked(s, in.Settings, in.MonthOverride, in.Now)

	canBypass := in.Caps.CanOverrideLock && !in.Caps.ReadOnly
	// Bypassable covers both sources: a lock-overriding caller passes the
	// submission lock directly and can lift a temporal lock by enabling
	// the session date override.
	r.Bypassable = r.Locked() && canBypass

	// The session date override belongs to lock-overriding callers only;
	// for everyone else the toggle does not exist.
	r.Bypassed = r.TemporalLocked && in.DateOverride && canBypass

	submissionDisables := r.SubmissionLocked
	if !in.Caps.SubmissionMode && canBypass {
		submissionDisables = false
	}
	temporalDisables := r.TemporalLocked && !r.Bypassed

	r.FieldsDisabled = submissionDisables || temporalDisables
	r.Message = message(r, s)
	return r
}

// submissionLocked evaluates the grading handover lock for one caller.
// Submission-mode callers keep updating execution fields after handover and
// only lock once the plan is actually graded or a drop is pending.
func submissionLocked(s plan.Snapshot, caps plan.Capabilities) bool {
	submitted := s.Submission == plan.SubmissionSubmitted
	if !submitted {
		return false
	}
	if caps.SubmissionMode {
		return s.Graded() || s.IsDropPending
	}
	return true
}

// temporalLocked resolves the calendar lock in strict precedence order.
func temporalLocked(s plan.Snapshot, set Settings, override *Override, now time.Time) bool {
	// 1. An active grace period from a grading revision always unlocks.
	if s.TemporaryUnlockExpiry != nil && now.Before(*s.TemporaryUnlockExpiry) {
		return false
	}
	// 2. Feature disabled globally.
	if !set.Enabled {
		return false
	}
	// 3. Monthly schedule entry beats the derived cutoff.
	if override != nil {
		if override.ForceOpen {
			return false
		}
		if override.LockDate != nil {
			return !now.Before(*override.LockDate)
		}
	}
	// 4. An approved unlock request holds until its deadline.
	if s.UnlockStatus == "approved" && s.ApprovedUntil != nil && now.Before(*s.ApprovedUntil) {
		return false
	}
	// 5. Cutoff arithmetic: the window closes cutoffDay days after the
	// first day of the month following the plan's month.
	return !now.Before(cutoffInstant(s.Month, s.Year, set.CutoffDay))
}

func cutoffInstant(month, year, cutoffDay int) time.Time {
	firstOfNext := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, cutoffDay)
}

func message(r Result, s plan.Snapshot) string {
	switch {
	case r.SubmissionLocked && r.TemporalLocked:
		return "plan is submitted for grading and its reporting period is closed"
	case r.SubmissionLocked:
		return "plan is submitted for grading"
	case r.TemporalLocked && r.Bypassed:
		return fmt.Sprintf("reporting period %d/%d is closed (bypassed by date override)", s.Month, s.Year)
	case r.TemporalLocked:
		return fmt.Sprintf("reporting period %d/%d is closed", s.Month, s.Year)
	default:
		return ""
	}
}
