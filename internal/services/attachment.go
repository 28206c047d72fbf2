package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/types"
)

// AttachmentInput registers one evidence pointer. The engine never reads
// the content behind the URL; it only counts rows.
type AttachmentInput struct {
	Kind  string `json:"kind"`
	URL   string `json:"url"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Size  int64  `json:"size"`
	Mime  string `json:"mime"`
}

type AttachmentService interface {
	Register(ctx context.Context, planID uuid.UUID, inputs []AttachmentInput) ([]*types.PlanAttachment, error)
	List(ctx context.Context, planID uuid.UUID) ([]*types.PlanAttachment, error)
}

type attachmentService struct {
	repo repos.PlanAttachmentRepo
	plan PlanService
	log  *logger.Logger
}

func NewAttachmentService(repo repos.PlanAttachmentRepo, planSvc PlanService, baseLog *logger.Logger) AttachmentService {
	return &attachmentService{repo: repo, plan: planSvc, log: baseLog.With("service", "AttachmentService")}
}

// Register validates the batch up front, then stores the rows in parallel.
// Evidence is an execution-phase field, so it is gated by the same lock
// verdict as a remark edit.
func (s *attachmentService) Register(ctx context.Context, planID uuid.UUID, inputs []AttachmentInput) ([]*types.PlanAttachment, error) {
	rd, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rd.Capabilities.ReadOnly {
		return nil, &plan.PermissionError{Capability: "attach", Reason: "read-only callers cannot add evidence"}
	}
	if len(inputs) == 0 {
		return nil, plan.NewValidationError("attachments", "at least one attachment is required")
	}

	lockRes, err := s.plan.LockStatus(ctx, planID)
	if err != nil {
		return nil, err
	}
	if lockRes.FieldsDisabled {
		return nil, &plan.PermissionError{Capability: "override_lock", Reason: lockRes.Message}
	}

	rows := make([]*types.PlanAttachment, len(inputs))
	for i, in := range inputs {
		kind := in.Kind
		if kind != types.AttachmentFile && kind != types.AttachmentLink {
			return nil, plan.NewValidationError("kind", "attachment kind must be file or link")
		}
		if strings.TrimSpace(in.URL) == "" {
			return nil, plan.NewValidationError("url", "an attachment URL is required")
		}
		rows[i] = &types.PlanAttachment{
			ID:     uuid.New(),
			PlanID: planID,
			Kind:   kind,
			URL:    in.URL,
			Name:   in.Name,
			Title:  in.Title,
			Size:   in.Size,
			Mime:   in.Mime,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, row := range rows {
		row := row
		g.Go(func() error {
			_, err := s.repo.Create(gctx, nil, []*types.PlanAttachment{row})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, wrapRemote("store attachments", err)
	}
	s.log.Info("Evidence registered", "plan_id", planID.String(), "count", len(rows))
	return rows, nil
}

func (s *attachmentService) List(ctx context.Context, planID uuid.UUID) ([]*types.PlanAttachment, error) {
	if _, err := callerFrom(ctx); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetByPlanID(ctx, nil, planID)
	if err != nil {
		return nil, wrapRemote("list attachments", err)
	}
	return rows, nil
}
