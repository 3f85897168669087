package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"safenest-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, full_name, phone_number, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.FullName, &u.PhoneNumber, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", id, err)
	}
	return u, nil
}

// GetAlertPreferences returns the user's channel flags. A user with no
// stored row gets the defaults: email and SOS on, SMS off.
func (r *UserRepo) GetAlertPreferences(ctx context.Context, userID uuid.UUID) (models.AlertChannelPreferences, error) {
	prefs := models.AlertChannelPreferences{EmailAlerts: true, SOSAlerts: true}

	err := r.pool.QueryRow(ctx, `
		SELECT sms_alerts, email_alerts, sos_alerts
		FROM user_alert_preferences
		WHERE user_id = $1
	`, userID).Scan(&prefs.SMSAlerts, &prefs.EmailAlerts, &prefs.SOSAlerts)
	if errors.Is(err, pgx.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("failed to load alert preferences: %w", err)
	}
	return prefs, nil
}

func (r *UserRepo) SetAlertPreferences(ctx context.Context, userID uuid.UUID, prefs models.AlertChannelPreferences) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_alert_preferences (user_id, sms_alerts, email_alerts, sos_alerts, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET sms_alerts = $2, email_alerts = $3, sos_alerts = $4, updated_at = NOW()
	`, userID, prefs.SMSAlerts, prefs.EmailAlerts, prefs.SOSAlerts)
	if err != nil {
		return fmt.Errorf("failed to save alert preferences: %w", err)
	}
	return nil
}
