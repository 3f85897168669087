package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safenest-backend/internal/models"
)

// ──── Redis-backed store ────

type redisConditionStore struct {
	client *redis.Client
}

func NewRedisConditionStore(client *redis.Client) ConditionStore {
	return &redisConditionStore{client: client}
}

func sosKey(userID uuid.UUID) string {
	return "sos:" + userID.String()
}

func (s *redisConditionStore) Set(ctx context.Context, userID uuid.UUID, cond models.SOSCondition, ttl time.Duration) error {
	raw, err := json.Marshal(cond)
	if err != nil {
		return fmt.Errorf("failed to encode SOS condition: %w", err)
	}
	if err := s.client.Set(ctx, sosKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store SOS condition: %w", err)
	}
	return nil
}

func (s *redisConditionStore) Get(ctx context.Context, userID uuid.UUID) (*models.SOSCondition, error) {
	raw, err := s.client.Get(ctx, sosKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load SOS condition: %w", err)
	}

	var cond models.SOSCondition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return nil, fmt.Errorf("failed to decode SOS condition: %w", err)
	}
	return &cond, nil
}

func (s *redisConditionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, sosKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear SOS condition: %w", err)
	}
	return nil
}

// Redis expires keys itself; nothing to purge.
func (s *redisConditionStore) PurgeExpired(ctx context.Context) int { return 0 }

// ──── In-memory store ────

type memoryEntry struct {
	cond      models.SOSCondition
	expiresAt time.Time
}

// MemoryConditionStore keeps conditions in a mutex-guarded map with an
// explicit expires-at check on read, so expiry never depends on a timer
// having fired.
type MemoryConditionStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	now     func() time.Time
}

func NewMemoryConditionStore() *MemoryConditionStore {
	return &MemoryConditionStore{
		entries: make(map[uuid.UUID]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryConditionStore) Set(ctx context.Context, userID uuid.UUID, cond models.SOSCondition, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = memoryEntry{cond: cond, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryConditionStore) Get(ctx context.Context, userID uuid.UUID) (*models.SOSCondition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[userID]
	if !ok {
		return nil, nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, userID)
		return nil, nil
	}

	cond := entry.cond
	return &cond, nil
}

func (s *MemoryConditionStore) Delete(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

func (s *MemoryConditionStore) PurgeExpired(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for userID, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, userID)
			purged++
		}
	}
	return purged
}
