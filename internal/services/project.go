package services

import (
	"context"
	"encoding/json"
	"errors"
	"net"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
	"github.com/kertaswork/plantrack-backend/internal/domain/statemachine"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// toSnapshot projects a persisted row into the engine-side view. The flat
// nullable columns collapse back into the detail union keyed off the status;
// stray columns from older rows are ignored rather than surfaced.
func toSnapshot(row *types.ActionPlan, evidenceCount int) plan.Snapshot {
	s := plan.Snapshot{
		ID:           row.ID,
		DepartmentID: row.DepartmentID,
		PicUserID:    row.PicUserID,

		Name:     row.Name,
		Category: row.Category,
		Month:    row.Month,
		Year:     row.Year,

		Status:     plan.Status(row.Status),
		Submission: plan.SubmissionStatus(row.SubmissionStatus),
		Detail:     detailFromRow(row),

		QualityScore:     row.QualityScore,
		MaxPossibleScore: row.MaxPossibleScore,

		IsDropPending: row.IsDropPending,

		ApprovedUntil:         row.ApprovedUntil,
		TemporaryUnlockExpiry: row.TemporaryUnlockExpiry,

		NeedsExecReview: row.NeedsExecReview,
		EvidenceCount:   evidenceCount,

		UpdatedAt: row.UpdatedAt,
	}
	if row.ResolutionType != nil {
		rt := plan.ResolutionType(*row.ResolutionType)
		s.ResolutionType = &rt
	}
	if row.UnlockStatus != nil {
		s.UnlockStatus = *row.UnlockStatus
	}
	return s
}

func detailFromRow(row *types.ActionPlan) plan.Detail {
	switch row.Status {
	case types.StatusBlocked:
		d := plan.Blocked{}
		if row.BlockerCategory != nil {
			d.Category = *row.BlockerCategory
		}
		if row.BlockerReason != nil {
			d.Reason = *row.BlockerReason
		}
		if row.AttentionLevel != nil {
			d.Tier = *row.AttentionLevel
		}
		return d
	case types.StatusNotAchieved:
		d := plan.NotAchieved{}
		if row.GapCategory != nil {
			d.GapCategory = *row.GapCategory
		}
		if row.GapAnalysis != nil {
			d.GapAnalysis = *row.GapAnalysis
		}
		if row.SpecifyReason != nil {
			d.SpecifyReason = *row.SpecifyReason
		}
		return d
	default:
		return plan.NoDetail{}
	}
}

// changesToUpdates flattens a validated change set into the column map for
// the guarded update. Entering a status always clears the other status's
// field cluster so no row ever carries both.
func changesToUpdates(ch statemachine.Changes) map[string]interface{} {
	updates := map[string]interface{}{}
	if ch.Remark != nil {
		updates["remark"] = *ch.Remark
	}
	if ch.ExecutionOnly {
		return updates
	}

	updates["status"] = string(ch.Status)
	switch d := ch.Detail.(type) {
	case plan.Blocked:
		updates["blocker_category"] = d.Category
		updates["blocker_reason"] = d.Reason
		updates["attention_level"] = d.Tier
		updates["gap_category"] = nil
		updates["gap_analysis"] = nil
		updates["specify_reason"] = nil
	case plan.NotAchieved:
		updates["gap_category"] = d.GapCategory
		updates["gap_analysis"] = d.GapAnalysis
		updates["specify_reason"] = d.SpecifyReason
		updates["blocker_category"] = nil
		updates["blocker_reason"] = nil
		updates["attention_level"] = nil
	default:
		updates["blocker_category"] = nil
		updates["blocker_reason"] = nil
		updates["attention_level"] = nil
		updates["gap_category"] = nil
		updates["gap_analysis"] = nil
		updates["specify_reason"] = nil
	}

	if ch.SetResolutionType {
		if ch.ResolutionType != nil {
			updates["resolution_type"] = string(*ch.ResolutionType)
		} else {
			updates["resolution_type"] = nil
		}
		updates["is_drop_pending"] = ch.IsDropPending
	}
	if ch.SetNeedsExecReview {
		updates["needs_exec_review"] = ch.NeedsExecReview
	}
	return updates
}

// timelineRows converts pending entries into persisted rows with the actor
// and any structured metadata attached.
func timelineRows(planID, actorID uuid.UUID, entries []statemachine.TimelineEntry, meta map[string]interface{}) []*types.TimelineEntry {
	var metaJSON datatypes.JSON
	if len(meta) > 0 {
		if raw, err := json.Marshal(meta); err == nil {
			metaJSON = raw
		}
	}
	rows := make([]*types.TimelineEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, &types.TimelineEntry{
			ID:      uuid.New(),
			PlanID:  planID,
			Kind:    e.Kind,
			Message: e.Message,
			Marker:  e.Marker,
			ActorID: actorID,
			Meta:    metaJSON,
		})
	}
	return rows
}

// wrapRemote classifies an infrastructure failure. Timeouts and network
// errors become TransientError so callers know the outcome is unknown and a
// refetch-then-retry is required; everything else passes through.
func wrapRemote(op string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return &plan.TransientError{Op: op, Err: err}
	}
	return err
}

func gormNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// successorRow materializes a carry-over successor as a fresh draft row.
// Evidence, score, blocker and gap state never cross the month boundary;
// only the penalized ceiling does, when one applies.
func successorRow(spec resolution.Successor) *types.ActionPlan {
	from := spec.CarriedFrom.ID
	return &types.ActionPlan{
		ID:               uuid.New(),
		DepartmentID:     spec.CarriedFrom.DepartmentID,
		PicUserID:        spec.CarriedFrom.PicUserID,
		Name:             spec.Name,
		Indicator:        spec.Indicator,
		Category:         spec.Category,
		Month:            spec.Month,
		Year:             spec.Year,
		Status:           types.StatusOpen,
		SubmissionStatus: types.SubmissionDraft,
		MaxPossibleScore: spec.MaxPossibleScore,
		CarriedFromID:    &from,
	}
}
