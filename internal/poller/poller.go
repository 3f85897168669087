// Package poller implements the mobile app's SOS short-poll protocol: a
// foreground loop while the screen is visible and an independent background
// schedule, both feeding the same blocking interrupt and acknowledgment.
package poller

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"safenest-backend/internal/models"
)

const (
	ForegroundInterval = 15 * time.Second
	BackgroundInterval = 15 * time.Minute
)

// SOSClient is the mobile app's view of the SOS register.
type SOSClient interface {
	Poll(ctx context.Context, userID uuid.UUID) (*models.SOSPollResponse, error)
	Acknowledge(ctx context.Context, userID uuid.UUID) error
}

// Notifier presents an active condition to the user. PresentInterrupt blocks
// until the user confirms the full-screen vibrating alert; NotifyBackground
// posts a system notification carrying a full-screen intent and likewise
// returns once the user has confirmed.
type Notifier interface {
	PresentInterrupt(cond models.SOSPollResponse)
	NotifyBackground(cond models.SOSPollResponse)
}

type Poller struct {
	client   SOSClient
	notifier Notifier
	userID   uuid.UUID

	foregroundInterval time.Duration
	backgroundInterval time.Duration
}

func New(client SOSClient, notifier Notifier, userID uuid.UUID) *Poller {
	return &Poller{
		client:             client,
		notifier:           notifier,
		userID:             userID,
		foregroundInterval: ForegroundInterval,
		backgroundInterval: BackgroundInterval,
	}
}

// RunForeground polls while the relevant screen is visible. Cancel the
// context on screen teardown.
func (p *Poller) RunForeground(ctx context.Context) {
	p.run(ctx, p.foregroundInterval, func(cond models.SOSPollResponse) {
		p.notifier.PresentInterrupt(cond)
	})
}

// RunBackground is the periodic job independent of app foreground state.
func (p *Poller) RunBackground(ctx context.Context) {
	p.run(ctx, p.backgroundInterval, func(cond models.SOSPollResponse) {
		p.notifier.NotifyBackground(cond)
	})
}

func (p *Poller) run(ctx context.Context, interval time.Duration, present func(models.SOSPollResponse)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkOnce(ctx, present)
		}
	}
}

// checkOnce polls and, on an active condition, presents it and acknowledges.
// Foreground and background paths may both see the same condition; the
// acknowledge endpoint is idempotent, so the redundant clear is harmless.
func (p *Poller) checkOnce(ctx context.Context, present func(models.SOSPollResponse)) {
	resp, err := p.client.Poll(ctx, p.userID)
	if err != nil {
		log.Printf("poller: SOS poll failed: %v", err)
		return
	}
	if resp == nil || !resp.Active {
		return
	}

	present(*resp)

	if err := p.client.Acknowledge(ctx, p.userID); err != nil {
		log.Printf("poller: SOS acknowledge failed: %v", err)
	}
}
