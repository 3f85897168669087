package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"safenest-backend/internal/models"
)

// ActivityKey identifies the merge target for a logged event. The same
// literal query string reopens the same record; a different string starts a
// new one.
type ActivityKey struct {
	UserID  uuid.UUID
	ChildID *uuid.UUID
	Query   string
}

// LockString is the advisory-lock identity for the key. Concurrent merges on
// the same key serialize on it so the threshold crossing is decided exactly
// once.
func (k ActivityKey) LockString() string {
	child := ""
	if k.ChildID != nil {
		child = k.ChildID.String()
	}
	return fmt.Sprintf("activity:%s:%s:%s", k.UserID, child, k.Query)
}

type ActivityRepo struct {
	pool   *pgxpool.Pool
	window time.Duration
}

func NewActivityRepo(pool *pgxpool.Pool, window time.Duration) *ActivityRepo {
	return &ActivityRepo{pool: pool, window: window}
}

// Apply runs fn with the live record for key (nil if none is within the
// recency window) while holding a per-key advisory transaction lock, then
// persists whatever fn returns. The lock is released on commit/rollback.
func (r *ActivityRepo) Apply(ctx context.Context, key ActivityKey, fn func(live *models.ActivityRecord) (*models.ActivityRecord, error)) (*models.ActivityRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.LockString()); err != nil {
		return nil, fmt.Errorf("failed to acquire merge lock: %w", err)
	}

	live, err := r.findLive(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	updated, err := fn(live)
	if err != nil {
		return nil, err
	}

	updatesJSON, err := json.Marshal(updated.TimeSpentUpdates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode update log: %w", err)
	}

	if live == nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO activity_records
				(id, user_id, child_id, child_name, query, occurred_at, total_time_spent,
				 time_spent_updates, is_harmful, predicted_result, sentiment_score,
				 alert_sent, alert_time, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, updated.ID, updated.UserID, updated.ChildID, updated.ChildName, updated.Query,
			updated.OccurredAt, updated.TotalTimeSpent, updatesJSON, updated.IsHarmful,
			updated.PredictedResult, updated.SentimentScore, updated.AlertSent,
			updated.AlertTime, updated.UpdatedAt)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE activity_records
			SET total_time_spent = $2,
				time_spent_updates = $3,
				is_harmful = $4,
				predicted_result = $5,
				sentiment_score = $6,
				alert_sent = $7,
				alert_time = $8,
				updated_at = $9
			WHERE id = $1
		`, updated.ID, updated.TotalTimeSpent, updatesJSON, updated.IsHarmful,
			updated.PredictedResult, updated.SentimentScore, updated.AlertSent,
			updated.AlertTime, updated.UpdatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist activity record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	return updated, nil
}

func (r *ActivityRepo) findLive(ctx context.Context, tx pgx.Tx, key ActivityKey) (*models.ActivityRecord, error) {
	cutoff := time.Now().Add(-r.window)

	row := tx.QueryRow(ctx, `
		SELECT id, user_id, child_id, child_name, query, occurred_at, total_time_spent,
			   time_spent_updates, is_harmful, predicted_result, sentiment_score,
			   alert_sent, alert_time, updated_at
		FROM activity_records
		WHERE user_id = $1
		  AND child_id IS NOT DISTINCT FROM $2
		  AND query = $3
		  AND updated_at > $4
		ORDER BY updated_at DESC
		LIMIT 1
	`, key.UserID, key.ChildID, key.Query, cutoff)

	rec, err := scanActivityRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load activity record: %w", err)
	}
	return rec, nil
}

// ListRecent returns a user's most recently updated records, newest first.
func (r *ActivityRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]models.ActivityRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, child_id, child_name, query, occurred_at, total_time_spent,
			   time_spent_updates, is_harmful, predicted_result, sentiment_score,
			   alert_sent, alert_time, updated_at
		FROM activity_records
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity records: %w", err)
	}
	defer rows.Close()

	records := []models.ActivityRecord{}
	for rows.Next() {
		rec, err := scanActivityRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanActivityRecord(row pgx.Row) (*models.ActivityRecord, error) {
	var rec models.ActivityRecord
	var updatesJSON []byte

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ChildID,
		&rec.ChildName,
		&rec.Query,
		&rec.OccurredAt,
		&rec.TotalTimeSpent,
		&updatesJSON,
		&rec.IsHarmful,
		&rec.PredictedResult,
		&rec.SentimentScore,
		&rec.AlertSent,
		&rec.AlertTime,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(updatesJSON) > 0 {
		if err := json.Unmarshal(updatesJSON, &rec.TimeSpentUpdates); err != nil {
			return nil, fmt.Errorf("failed to decode update log: %w", err)
		}
	}
	return &rec, nil
}
