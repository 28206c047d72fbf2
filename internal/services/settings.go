package services

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"github.com/kertaswork/plantrack-backend/internal/domain/escalation"
	"github.com/kertaswork/plantrack-backend/internal/domain/grading"
	"github.com/kertaswork/plantrack-backend/internal/domain/lock"
	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/domain/resolution"
	"github.com/kertaswork/plantrack-backend/internal/domain/statemachine"
	"github.com/kertaswork/plantrack-backend/internal/logger"
	"github.com/kertaswork/plantrack-backend/internal/repos"
	"github.com/kertaswork/plantrack-backend/internal/types"
	"github.com/kertaswork/plantrack-backend/internal/utils"
)

const (
	settingsCacheKey = "plantrack:policy_settings"
	settingsCacheTTL = 30 * time.Second
)

// SettingsService owns the single PolicySettings row and projects it into
// the typed slices each engine consumes. Reads go through a short Redis
// cache; a save invalidates it.
type SettingsService interface {
	Get(ctx context.Context) (*types.PolicySettings, error)
	Save(ctx context.Context, settings *types.PolicySettings) (*types.PolicySettings, error)
	// Seed writes the defaults file (or built-in defaults) when no row
	// exists yet. Called once on boot.
	Seed(ctx context.Context) error

	LockSettings(ctx context.Context) (lock.Settings, error)
	EscalationConfig(ctx context.Context) (escalation.Config, error)
	GradingPolicy(ctx context.Context) (grading.Policy, error)
	ResolutionPolicy(ctx context.Context) (resolution.Policy, error)
	InvariantMins(ctx context.Context) (plan.InvariantMins, error)
	StateMachineConfig(ctx context.Context) (statemachine.Config, error)
}

type settingsService struct {
	repo  repos.PolicySettingsRepo
	cache *redis.Client
	log   *logger.Logger
}

// NewSettingsService wires the settings repo with an optional Redis cache;
// cache may be nil and every read falls through to the database.
func NewSettingsService(repo repos.PolicySettingsRepo, cache *redis.Client, baseLog *logger.Logger) SettingsService {
	return &settingsService{repo: repo, cache: cache, log: baseLog.With("service", "SettingsService")}
}

func (s *settingsService) Get(ctx context.Context) (*types.PolicySettings, error) {
	if cached := s.fromCache(ctx); cached != nil {
		return cached, nil
	}
	row, err := s.repo.Get(ctx, nil)
	if err != nil {
		return nil, wrapRemote("load policy settings", err)
	}
	if row == nil {
		return nil, &plan.PolicyConfigError{Setting: "policy_settings"}
	}
	s.toCache(ctx, row)
	return row, nil
}

func (s *settingsService) Save(ctx context.Context, settings *types.PolicySettings) (*types.PolicySettings, error) {
	if settings.LockCutoffDay < 0 {
		return nil, plan.NewValidationError("lock_cutoff_day", "cutoff day cannot be negative")
	}
	if settings.GapAnalysisMinLength < 0 || settings.DropJustificationMinLength < 0 {
		return nil, plan.NewValidationError("min_lengths", "minimum lengths cannot be negative")
	}
	current, err := s.repo.Get(ctx, nil)
	if err != nil {
		return nil, wrapRemote("load policy settings", err)
	}
	if current != nil {
		settings.ID = current.ID
	} else if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}
	if err := s.repo.Save(ctx, nil, settings); err != nil {
		return nil, wrapRemote("save policy settings", err)
	}
	s.invalidate(ctx)
	return settings, nil
}

func (s *settingsService) Seed(ctx context.Context) error {
	existing, err := s.repo.Get(ctx, nil)
	if err != nil {
		return wrapRemote("load policy settings", err)
	}
	if existing != nil {
		return nil
	}

	defaults := builtinDefaults()
	path := utils.GetEnv("POLICY_DEFAULTS_FILE", "", s.log)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			s.log.Warn("Could not read policy defaults file, using built-ins", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &defaults); err != nil {
			s.log.Warn("Could not parse policy defaults file, using built-ins", "path", path, "error", err)
		}
	}

	row := defaults.toRow()
	s.log.Info("Seeding policy settings", "strict_grading", row.StrictGrading, "lock_cutoff_day", row.LockCutoffDay)
	if err := s.repo.Save(ctx, nil, row); err != nil {
		return wrapRemote("seed policy settings", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *settingsService) LockSettings(ctx context.Context) (lock.Settings, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return lock.Settings{}, err
	}
	return lock.Settings{Enabled: row.LockEnabled, CutoffDay: row.LockCutoffDay}, nil
}

func (s *settingsService) EscalationConfig(ctx context.Context) (escalation.Config, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return escalation.Config{}, err
	}
	return escalation.Config{
		Categories:   row.BlockerCategories.Data(),
		MinReasonLen: row.AttentionMinLengths.Data(),
	}, nil
}

func (s *settingsService) GradingPolicy(ctx context.Context) (grading.Policy, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return grading.Policy{}, err
	}
	thresholds := map[grading.Bucket]int{}
	for bucket, score := range row.Thresholds.Data() {
		thresholds[grading.Bucket(bucket)] = score
	}
	return grading.Policy{
		Strict:                row.StrictGrading,
		Thresholds:            thresholds,
		CarryOverPenalty:      row.CarryOverPenalty,
		RevisionWindowMaxDays: row.RevisionWindowMaxDays,
	}, nil
}

func (s *settingsService) ResolutionPolicy(ctx context.Context) (resolution.Policy, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return resolution.Policy{}, err
	}
	return resolution.Policy{
		GapAnalysisMin:       row.GapAnalysisMinLength,
		DropJustificationMin: row.DropJustificationMinLength,
		ApprovalMinBucket:    grading.Bucket(row.DropApprovalMinBucket),
		GapCategories:        row.GapCategories.Data(),
	}, nil
}

func (s *settingsService) InvariantMins(ctx context.Context) (plan.InvariantMins, error) {
	row, err := s.Get(ctx)
	if err != nil {
		return plan.InvariantMins{}, err
	}
	return plan.InvariantMins{
		AttentionMinLengths: row.AttentionMinLengths.Data(),
		GapAnalysisMin:      row.GapAnalysisMinLength,
	}, nil
}

func (s *settingsService) StateMachineConfig(ctx context.Context) (statemachine.Config, error) {
	esc, err := s.EscalationConfig(ctx)
	if err != nil {
		return statemachine.Config{}, err
	}
	res, err := s.ResolutionPolicy(ctx)
	if err != nil {
		return statemachine.Config{}, err
	}
	return statemachine.Config{Escalation: esc, Resolution: res}, nil
}

func (s *settingsService) fromCache(ctx context.Context) *types.PolicySettings {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, settingsCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("Settings cache read failed", "error", err)
		}
		return nil
	}
	var row types.PolicySettings
	if err := json.Unmarshal(raw, &row); err != nil {
		s.log.Warn("Settings cache entry corrupt, dropping", "error", err)
		s.invalidate(ctx)
		return nil
	}
	return &row
}

func (s *settingsService) toCache(ctx context.Context, row *types.PolicySettings) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, settingsCacheKey, raw, settingsCacheTTL).Err(); err != nil {
		s.log.Warn("Settings cache write failed", "error", err)
	}
}

func (s *settingsService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, settingsCacheKey).Err(); err != nil {
		s.log.Warn("Settings cache invalidation failed", "error", err)
	}
}

// policyDefaults is the YAML shape of the seed file.
type policyDefaults struct {
	LockEnabled   *bool `yaml:"lock_enabled"`
	LockCutoffDay *int  `yaml:"lock_cutoff_day"`

	StrictGrading *bool          `yaml:"strict_grading"`
	Thresholds    map[string]int `yaml:"thresholds"`

	AttentionMinLengths map[string]int `yaml:"attention_min_lengths"`

	GapAnalysisMinLength       *int   `yaml:"gap_analysis_min_length"`
	DropJustificationMinLength *int   `yaml:"drop_justification_min_length"`
	DropApprovalMinBucket      string `yaml:"drop_approval_min_bucket"`

	RevisionWindowMaxDays *int `yaml:"revision_window_max_days"`
	CarryOverPenalty      *int `yaml:"carry_over_penalty"`

	GapCategories     []string `yaml:"gap_categories"`
	BlockerCategories []string `yaml:"blocker_categories"`
}

func builtinDefaults() policyDefaults {
	t, six, ten, thirty, fourteen := true, 6, 10, 30, 14
	return policyDefaults{
		LockEnabled:   &t,
		LockCutoffDay: &six,
		StrictGrading: &t,
		Thresholds: map[string]int{
			string(grading.BucketLow):       70,
			string(grading.BucketMedium):    75,
			string(grading.BucketHigh):      80,
			string(grading.BucketUltraHigh): 85,
		},
		AttentionMinLengths: map[string]int{
			escalation.TierLeader:    20,
			escalation.TierManager:   40,
			escalation.TierDirector:  60,
			escalation.TierExecutive: 80,
		},
		GapAnalysisMinLength:       &ten,
		DropJustificationMinLength: &thirty,
		DropApprovalMinBucket:      string(grading.BucketHigh),
		RevisionWindowMaxDays:      &fourteen,
		CarryOverPenalty:           &ten,
		GapCategories: []string{
			"Planning", "Resource", "External Dependency", "Process", "Other",
		},
		BlockerCategories: []string{
			"Budget", "Manpower", "Vendor", "Regulatory", "Technical", "Other",
		},
	}
}

func (d policyDefaults) toRow() *types.PolicySettings {
	row := &types.PolicySettings{
		ID:                    uuid.New(),
		LockEnabled:           true,
		LockCutoffDay:         6,
		StrictGrading:         true,
		GapAnalysisMinLength:  10,
		RevisionWindowMaxDays: 14,
		CarryOverPenalty:      10,

		DropJustificationMinLength: 30,
		DropApprovalMinBucket:      d.DropApprovalMinBucket,

		Thresholds:          datatypes.NewJSONType(d.Thresholds),
		AttentionMinLengths: datatypes.NewJSONType(d.AttentionMinLengths),
		GapCategories:       datatypes.NewJSONType(d.GapCategories),
		BlockerCategories:   datatypes.NewJSONType(d.BlockerCategories),
	}
	if d.LockEnabled != nil {
		row.LockEnabled = *d.LockEnabled
	}
	if d.LockCutoffDay != nil {
		row.LockCutoffDay = *d.LockCutoffDay
	}
	if d.StrictGrading != nil {
		row.StrictGrading = *d.StrictGrading
	}
	if d.GapAnalysisMinLength != nil {
		row.GapAnalysisMinLength = *d.GapAnalysisMinLength
	}
	if d.DropJustificationMinLength != nil {
		row.DropJustificationMinLength = *d.DropJustificationMinLength
	}
	if d.RevisionWindowMaxDays != nil {
		row.RevisionWindowMaxDays = *d.RevisionWindowMaxDays
	}
	if d.CarryOverPenalty != nil {
		row.CarryOverPenalty = *d.CarryOverPenalty
	}
	return row
}
