package models

import (
	"time"

	"github.com/google/uuid"
)

// AlertChannelPreferences are the per-user booleans gating alert fan-out.
type AlertChannelPreferences struct {
	SMSAlerts   bool `json:"smsAlerts"`
	EmailAlerts bool `json:"emailAlerts"`
	SOSAlerts   bool `json:"sosAlerts"`
}

// SOSCondition is the single live highest-severity alert slot for a user.
// It expires 60 seconds after RaisedAt unless acknowledged first.
type SOSCondition struct {
	ChildName string    `json:"child_name"`
	Query     string    `json:"query"`
	RaisedAt  time.Time `json:"raised_at"`
}

// SOSPollResponse is the wire shape of GET /sos/{userID}.
type SOSPollResponse struct {
	Active    bool       `json:"active"`
	ChildName string     `json:"childName,omitempty"`
	Query     string     `json:"query,omitempty"`
	RaisedAt  *time.Time `json:"raisedAt,omitempty"`
}

// SOSAuditEntry records every raised SOS with its triggering query.
type SOSAuditEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ChildName string    `json:"child_name"`
	Query     string    `json:"query"`
	RaisedAt  time.Time `json:"raised_at"`
}
