package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safenest-backend/internal/models"
	"safenest-backend/internal/repository"
)

const (
	// RecencyWindow decides whether an event merges into an existing record
	// or starts a new one.
	RecencyWindow = 5 * time.Minute

	// AlertThresholdSeconds is the cumulative harmful dwell time at which an
	// alert fires, once per record.
	AlertThresholdSeconds = 10
)

// Known search-engine title suffixes, stripped before the query becomes a
// merge key.
var searchTitleSuffixes = []string{
	" - google search",
	" - google zoeken",
	" - bing",
	" - search results",
	" - yahoo search results",
	" - yahoo search",
	" at duckduckgo",
	" - duckduckgo",
	" — yandex",
	" - yandex",
	" - brave search",
	" - ecosia",
}

// NormalizeQuery strips search-engine suffixes, trims, and collapses runs of
// whitespace.
func NormalizeQuery(q string) string {
	trimmed := strings.TrimSpace(q)
	lower := strings.ToLower(trimmed)
	for _, suffix := range searchTitleSuffixes {
		if strings.HasSuffix(lower, suffix) {
			trimmed = strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)])
			break
		}
	}
	return strings.Join(strings.Fields(trimmed), " ")
}

// ActivityStore persists activity records with per-key serialization: Apply
// runs fn under a lock on the merge key so concurrent events for the same
// (user, child, query) cannot both observe a pre-threshold total.
type ActivityStore interface {
	Apply(ctx context.Context, key repository.ActivityKey, fn func(live *models.ActivityRecord) (*models.ActivityRecord, error)) (*models.ActivityRecord, error)
}

// Classifier labels a query. Implementations must be failure-tolerant and
// return a degraded classification rather than an error when the upstream
// service is down.
type Classifier interface {
	Classify(ctx context.Context, userID uuid.UUID, childName, query string) models.Classification
}

// AlertTargetSource resolves the account and channel preferences an alert
// dispatch needs. Satisfied by repository.UserRepo.
type AlertTargetSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetAlertPreferences(ctx context.Context, userID uuid.UUID) (models.AlertChannelPreferences, error)
}

// LedgerService is the merge/threshold engine: it folds a logged event into
// exactly one activity record and decides, at most once per record, whether
// the harmful-exposure threshold was just crossed.
type LedgerService struct {
	store      ActivityStore
	classifier Classifier
	dispatcher *AlertDispatcher
	userRepo   AlertTargetSource
	publisher  *redis.Client
	now        func() time.Time
}

func NewLedgerService(
	store ActivityStore,
	classifier Classifier,
	dispatcher *AlertDispatcher,
	userRepo AlertTargetSource,
	publisher *redis.Client,
) *LedgerService {
	return &LedgerService{
		store:      store,
		classifier: classifier,
		dispatcher: dispatcher,
		userRepo:   userRepo,
		publisher:  publisher,
		now:        time.Now,
	}
}

// LogTime merges one event. The merge/threshold decision succeeds or fails
// on its own; alert dispatch and feed publishing never affect the result
// reported to the caller.
func (s *LedgerService) LogTime(ctx context.Context, req models.LogTimeRequest) (*models.LogTimeResponse, error) {
	req.Query = NormalizeQuery(req.Query)

	fields := map[string]string{}
	if req.UserID == uuid.Nil {
		fields["userId"] = "userId is required"
	}
	if req.Query == "" {
		fields["query"] = "query is required"
	}
	if req.TimeSpent <= 0 {
		fields["timeSpent"] = "timeSpent must be a positive number of seconds"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	classification := models.Classification{
		IsHarmful:       req.IsHarmful,
		PredictedResult: req.PredictedResult,
		SentimentScore:  req.SentimentScore,
	}
	if req.PredictedResult == "" && s.classifier != nil {
		classification = s.classifier.Classify(ctx, req.UserID, req.ChildName, req.Query)
	}

	key := repository.ActivityKey{UserID: req.UserID, ChildID: req.ChildID, Query: req.Query}

	crossed := false
	rec, err := s.store.Apply(ctx, key, func(live *models.ActivityRecord) (*models.ActivityRecord, error) {
		now := s.now()

		if live == nil {
			rec := &models.ActivityRecord{
				ID:               uuid.New(),
				UserID:           req.UserID,
				ChildID:          req.ChildID,
				ChildName:        req.ChildName,
				Query:            req.Query,
				OccurredAt:       now,
				TotalTimeSpent:   req.TimeSpent,
				TimeSpentUpdates: []models.TimeSpentUpdate{{Delta: req.TimeSpent, At: now}},
				IsHarmful:        classification.IsHarmful,
				PredictedResult:  classification.PredictedResult,
				SentimentScore:   classification.SentimentScore,
				UpdatedAt:        now,
			}
			// A single event can itself cross the threshold (the agent's
			// immediate harmful-query flush carries exactly 10 seconds).
			if classification.IsHarmful && req.TimeSpent >= AlertThresholdSeconds {
				rec.AlertSent = true
				rec.AlertTime = &now
				crossed = true
			}
			return rec, nil
		}

		newTotal := live.TotalTimeSpent + req.TimeSpent

		// The alert fires exactly on the update that carries the cumulative
		// total across the threshold, never before and never again after.
		shouldAlert := classification.IsHarmful &&
			!live.AlertSent &&
			live.TotalTimeSpent < AlertThresholdSeconds &&
			newTotal >= AlertThresholdSeconds

		updated := *live
		updated.TotalTimeSpent = newTotal
		updated.TimeSpentUpdates = append(updated.TimeSpentUpdates, models.TimeSpentUpdate{Delta: req.TimeSpent, At: now})
		updated.IsHarmful = classification.IsHarmful
		updated.PredictedResult = classification.PredictedResult
		updated.SentimentScore = classification.SentimentScore
		updated.UpdatedAt = now
		if shouldAlert {
			updated.AlertSent = true
			updated.AlertTime = &now
			crossed = true
		}
		return &updated, nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, rec)

	if crossed && s.dispatcher != nil {
		s.dispatchAlert(ctx, rec, classification)
	}

	return &models.LogTimeResponse{
		Success:        true,
		TotalTimeSpent: rec.TotalTimeSpent,
		IsHarmful:      rec.IsHarmful,
		AlertSent:      rec.AlertSent,
	}, nil
}

func (s *LedgerService) dispatchAlert(ctx context.Context, rec *models.ActivityRecord, classification models.Classification) {
	if s.userRepo == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, rec.UserID)
	if err != nil {
		log.Printf("ledger: failed to load user for alert dispatch: %v", err)
		return
	}

	prefs, err := s.userRepo.GetAlertPreferences(ctx, rec.UserID)
	if err != nil {
		log.Printf("ledger: failed to load alert preferences for %s: %v", rec.UserID, err)
		// Preferences default to email+SOS on; still worth dispatching.
	}

	s.dispatcher.Dispatch(ctx, user, rec, classification, prefs)
}

func (s *LedgerService) publishEvent(ctx context.Context, rec *models.ActivityRecord) {
	if s.publisher == nil {
		return
	}

	event := models.ActivityEvent{
		RecordID:       rec.ID,
		ChildName:      rec.ChildName,
		Query:          rec.Query,
		TotalTimeSpent: rec.TotalTimeSpent,
		IsHarmful:      rec.IsHarmful,
		AlertSent:      rec.AlertSent,
		At:             rec.UpdatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	channel := "activity:events:" + rec.UserID.String()
	if err := s.publisher.Publish(ctx, channel, payload).Err(); err != nil {
		log.Printf("ledger: failed to publish activity event: %v", err)
	}
}
