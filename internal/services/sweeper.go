package services

import (
	"context"
	"log"
	"time"
)

const sosSweepInterval = 30 * time.Second

// SOSSweeper periodically purges expired conditions from the register's
// backing store. Expiry is always enforced on read; the sweep only bounds
// memory for stores without native TTL.
type SOSSweeper struct {
	store    ConditionStore
	interval time.Duration
	stopChan chan struct{}
}

func NewSOSSweeper(store ConditionStore) *SOSSweeper {
	return &SOSSweeper{
		store:    store,
		interval: sosSweepInterval,
		stopChan: make(chan struct{}),
	}
}

func (s *SOSSweeper) Start() {
	if s.store == nil {
		return
	}

	go s.loop()
	log.Printf("SOS sweeper started (interval %s)", s.interval)
}

func (s *SOSSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *SOSSweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if purged := s.store.PurgeExpired(context.Background()); purged > 0 {
				log.Printf("SOS sweeper: purged %d expired condition(s)", purged)
			}
		}
	}
}
