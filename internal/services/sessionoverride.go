package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kertaswork/plantrack-backend/internal/domain/plan"
	"github.com/kertaswork/plantrack-backend/internal/logger"
)

const (
	dateOverridePrefix     = "plantrack:date_override:"
	dateOverrideDefaultTTL = 4 * time.Hour
)

// SessionOverrideService holds the per-admin date-override toggle. The flag
// lives in Redis with a TTL so a forgotten override expires on its own; it
// bypasses the temporal lock only, never the submission lock, and every
// mutation made under it is flagged in the audit trail by the caller.
type SessionOverrideService interface {
	Enable(ctx context.Context, caps plan.Capabilities, userID uuid.UUID, ttl time.Duration) error
	Disable(ctx context.Context, userID uuid.UUID) error
	Enabled(ctx context.Context, userID uuid.UUID) (bool, error)
}

type sessionOverrideService struct {
	rdb *redis.Client
	log *logger.Logger
}

func NewSessionOverrideService(rdb *redis.Client, baseLog *logger.Logger) SessionOverrideService {
	return &sessionOverrideService{rdb: rdb, log: baseLog.With("service", "SessionOverrideService")}
}

func (s *sessionOverrideService) Enable(ctx context.Context, caps plan.Capabilities, userID uuid.UUID, ttl time.Duration) error {
	if !caps.CanOverrideLock || caps.ReadOnly {
		return &plan.PermissionError{Capability: "override_lock", Reason: "date override is limited to lock administrators"}
	}
	if s.rdb == nil {
		return &plan.TransientError{Op: "enable date override", Err: redis.ErrClosed}
	}
	if ttl <= 0 || ttl > dateOverrideDefaultTTL {
		ttl = dateOverrideDefaultTTL
	}
	if err := s.rdb.Set(ctx, dateOverridePrefix+userID.String(), "1", ttl).Err(); err != nil {
		return wrapRemote("enable date override", err)
	}
	s.log.Warn("Date override enabled", "user_id", userID.String(), "ttl", ttl.String())
	return nil
}

func (s *sessionOverrideService) Disable(ctx context.Context, userID uuid.UUID) error {
	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.Del(ctx, dateOverridePrefix+userID.String()).Err(); err != nil {
		return wrapRemote("disable date override", err)
	}
	s.log.Info("Date override disabled", "user_id", userID.String())
	return nil
}

// Enabled never fails closed into a bypass: any Redis failure reads as no
// override.
func (s *sessionOverrideService) Enabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	if s.rdb == nil {
		return false, nil
	}
	_, err := s.rdb.Get(ctx, dateOverridePrefix+userID.String()).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		s.log.Warn("Date override lookup failed, treating as off", "user_id", userID.String(), "error", err)
		return false, nil
	}
	return true, nil
}
