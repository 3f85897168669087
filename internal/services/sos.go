package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"safenest-backend/internal/models"
)

// SOSLifetime bounds how long an unacknowledged condition stays active.
const SOSLifetime = 60 * time.Second

// ConditionStore is a key→value store with TTL holding at most one live
// condition per user. Backed by redis in production and by an in-memory map
// in tests and single-node dev, without code changes in the service.
type ConditionStore interface {
	Set(ctx context.Context, userID uuid.UUID, cond models.SOSCondition, ttl time.Duration) error
	// Get returns nil when no unexpired condition exists.
	Get(ctx context.Context, userID uuid.UUID) (*models.SOSCondition, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	// PurgeExpired removes lapsed entries and reports how many were removed.
	// TTL-native backends may implement it as a no-op.
	PurgeExpired(ctx context.Context) int
}

// SOSService is the per-user single-slot SOS register. Raise overwrites any
// live condition and resets its lifetime; Acknowledge is an idempotent clear.
type SOSService struct {
	store    ConditionStore
	lifetime time.Duration
	now      func() time.Time
}

func NewSOSService(store ConditionStore) *SOSService {
	return &SOSService{
		store:    store,
		lifetime: SOSLifetime,
		now:      time.Now,
	}
}

func (s *SOSService) Raise(ctx context.Context, userID uuid.UUID, childName, query string) error {
	cond := models.SOSCondition{
		ChildName: childName,
		Query:     query,
		RaisedAt:  s.now(),
	}
	return s.store.Set(ctx, userID, cond, s.lifetime)
}

func (s *SOSService) Poll(ctx context.Context, userID uuid.UUID) (models.SOSPollResponse, error) {
	cond, err := s.store.Get(ctx, userID)
	if err != nil {
		return models.SOSPollResponse{}, err
	}
	if cond == nil {
		return models.SOSPollResponse{Active: false}, nil
	}
	return models.SOSPollResponse{
		Active:    true,
		ChildName: cond.ChildName,
		Query:     cond.Query,
		RaisedAt:  &cond.RaisedAt,
	}, nil
}

// Acknowledge clears the user's condition. Clearing an already-idle or
// already-expired slot is a no-op success: foreground and background pollers
// may race to acknowledge the same condition.
func (s *SOSService) Acknowledge(ctx context.Context, userID uuid.UUID) error {
	return s.store.Delete(ctx, userID)
}
