package services

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"

	"safenest-backend/internal/models"
)

// suicideCategory gates the SOS channel: SOS is reserved for the
// highest-severity classification and fires only when the predicted label
// names this category.
const suicideCategory = "suicide"

type EmailAlertSender interface {
	SendHarmfulContentAlert(to, parentName, childName, query, predictedResult string, timeSpentSeconds int) error
}

type SMSAlertSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

type SOSRaiser interface {
	Raise(ctx context.Context, userID uuid.UUID, childName, query string) error
}

type AuditWriter interface {
	Insert(ctx context.Context, e *models.SOSAuditEntry) error
}

// AlertDispatcher fans one threshold crossing out to the channels the user
// enabled. Channels are independent: a failure in one is logged and never
// blocks another, and no failure propagates to the logging request.
type AlertDispatcher struct {
	email EmailAlertSender
	sms   SMSAlertSender
	sos   SOSRaiser
	audit AuditWriter
}

func NewAlertDispatcher(email EmailAlertSender, sms SMSAlertSender, sos SOSRaiser, audit AuditWriter) *AlertDispatcher {
	return &AlertDispatcher{email: email, sms: sms, sos: sos, audit: audit}
}

func (d *AlertDispatcher) Dispatch(ctx context.Context, user *models.User, rec *models.ActivityRecord, classification models.Classification, prefs models.AlertChannelPreferences) {
	if prefs.EmailAlerts && d.email != nil {
		err := d.email.SendHarmfulContentAlert(
			user.Email, user.FullName, rec.ChildName, rec.Query,
			classification.PredictedResult, rec.TotalTimeSpent,
		)
		if err != nil {
			log.Printf("dispatcher: email alert to %s failed: %v", user.Email, err)
		}
	}

	if prefs.SMSAlerts && d.sms != nil {
		body := smsAlertBody(rec.ChildName, rec.Query)
		if err := d.sms.SendSMS(ctx, user.PhoneNumber, body); err != nil {
			log.Printf("dispatcher: SMS alert to %s failed: %v", user.PhoneNumber, err)
		}
	}

	if prefs.SOSAlerts && d.sos != nil &&
		isSuicideCategory(classification.PredictedResult) &&
		rec.TotalTimeSpent >= AlertThresholdSeconds {
		if err := d.sos.Raise(ctx, user.ID, rec.ChildName, rec.Query); err != nil {
			log.Printf("dispatcher: failed to raise SOS for %s: %v", user.ID, err)
		} else if d.audit != nil {
			entry := &models.SOSAuditEntry{
				UserID:    user.ID,
				ChildName: rec.ChildName,
				Query:     rec.Query,
				RaisedAt:  rec.UpdatedAt,
			}
			if err := d.audit.Insert(ctx, entry); err != nil {
				log.Printf("dispatcher: failed to write SOS audit entry for %s: %v", user.ID, err)
			}
		}
	}
}

func isSuicideCategory(predictedResult string) bool {
	return strings.Contains(strings.ToLower(predictedResult), suicideCategory)
}

func smsAlertBody(childName, query string) string {
	name := childName
	if name == "" {
		name = "Your child"
	}
	return "SafeNest alert: " + name + " spent extended time on a flagged search: \"" + query + "\". Open the app for details."
}
