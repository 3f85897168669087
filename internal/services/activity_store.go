package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"safenest-backend/internal/models"
	"safenest-backend/internal/repository"
)

// MemoryActivityStore is the in-memory ActivityStore used in tests and
// single-node development. A single mutex serializes merges, which is the
// same per-key guarantee the Postgres store gets from its advisory lock.
type MemoryActivityStore struct {
	mu      sync.Mutex
	records []models.ActivityRecord
	window  time.Duration
	now     func() time.Time
}

func NewMemoryActivityStore(window time.Duration) *MemoryActivityStore {
	return &MemoryActivityStore{
		window: window,
		now:    time.Now,
	}
}

func (s *MemoryActivityStore) Apply(ctx context.Context, key repository.ActivityKey, fn func(live *models.ActivityRecord) (*models.ActivityRecord, error)) (*models.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)

	liveIdx := -1
	var live *models.ActivityRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if rec.UserID == key.UserID && rec.Query == key.Query && sameChild(rec.ChildID, key.ChildID) && rec.UpdatedAt.After(cutoff) {
			if live == nil || rec.UpdatedAt.After(live.UpdatedAt) {
				copied := rec
				live = &copied
				liveIdx = i
			}
		}
	}

	updated, err := fn(live)
	if err != nil {
		return nil, err
	}

	if liveIdx >= 0 {
		s.records[liveIdx] = *updated
	} else {
		s.records = append(s.records, *updated)
	}

	result := *updated
	return &result, nil
}

// Records returns a snapshot of everything stored, newest last.
func (s *MemoryActivityStore) Records() []models.ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ActivityRecord, len(s.records))
	copy(out, s.records)
	return out
}

func sameChild(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
