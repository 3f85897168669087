package models

import (
	"time"

	"github.com/google/uuid"
)

// Flush reasons reported by the extension agent.
const (
	FlushReasonTabClosed    = "tab_closed"
	FlushReasonUnload       = "unload"
	FlushReasonHarmfulQuery = "harmful-query"
	FlushReasonUnknown      = "unknown"
)

// TimeSpentUpdate is one append-only entry in a record's update log.
type TimeSpentUpdate struct {
	Delta int       `json:"delta"`
	At    time.Time `json:"at"`
}

// ActivityRecord accumulates dwell time for one (user, child, query) tuple
// within the recency window. At most one live record exists per tuple;
// once the window lapses the record is never reopened.
type ActivityRecord struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	ChildID          *uuid.UUID        `json:"child_id"`
	ChildName        string            `json:"child_name"`
	Query            string            `json:"query"`
	OccurredAt       time.Time         `json:"occurred_at"`
	TotalTimeSpent   int               `json:"total_time_spent"`
	TimeSpentUpdates []TimeSpentUpdate `json:"time_spent_updates"`
	IsHarmful        bool              `json:"is_harmful"`
	PredictedResult  string            `json:"predicted_result"`
	SentimentScore   float64           `json:"sentiment_score"`
	AlertSent        bool              `json:"alert_sent"`
	AlertTime        *time.Time        `json:"alert_time"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// LogTimeRequest is the payload the extension agent posts to /log-time.
// Classification fields are optional; when PredictedResult is empty the
// ledger classifies the query server-side.
type LogTimeRequest struct {
	UserID          uuid.UUID  `json:"userId"`
	ChildID         *uuid.UUID `json:"childId,omitempty"`
	ChildName       string     `json:"childName"`
	Query           string     `json:"query"`
	TimeSpent       int        `json:"timeSpent"`
	Reason          string     `json:"reason"`
	IsHarmful       bool       `json:"isHarmful"`
	PredictedResult string     `json:"predictedResult"`
	SentimentScore  float64    `json:"sentimentScore"`
}

type LogTimeResponse struct {
	Success        bool `json:"success"`
	TotalTimeSpent int  `json:"totalTimeSpent"`
	IsHarmful      bool `json:"isHarmful"`
	AlertSent      bool `json:"alertSent"`
}

// ActivityEvent is published to redis pub/sub after every merge so an open
// dashboard can update without polling.
type ActivityEvent struct {
	RecordID       uuid.UUID `json:"record_id"`
	ChildName      string    `json:"child_name"`
	Query          string    `json:"query"`
	TotalTimeSpent int       `json:"total_time_spent"`
	IsHarmful      bool      `json:"is_harmful"`
	AlertSent      bool      `json:"alert_sent"`
	At             time.Time `json:"at"`
}
