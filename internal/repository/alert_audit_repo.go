package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"safenest-backend/internal/models"
)

type AlertAuditRepo struct {
	pool *pgxpool.Pool
}

func NewAlertAuditRepo(pool *pgxpool.Pool) *AlertAuditRepo {
	return &AlertAuditRepo{pool: pool}
}

func (r *AlertAuditRepo) Insert(ctx context.Context, e *models.SOSAuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sos_alert_audit (id, user_id, child_name, query, raised_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.UserID, e.ChildName, e.Query, e.RaisedAt)
	if err != nil {
		return fmt.Errorf("failed to insert SOS audit entry: %w", err)
	}
	return nil
}

func (r *AlertAuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.SOSAuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, child_name, query, raised_at
		FROM sos_alert_audit
		WHERE user_id = $1
		ORDER BY raised_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list SOS audit entries: %w", err)
	}
	defer rows.Close()

	entries := []models.SOSAuditEntry{}
	for rows.Next() {
		var e models.SOSAuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ChildName, &e.Query, &e.RaisedAt); err != nil {
			return nil, fmt.Errorf("failed to scan SOS audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
