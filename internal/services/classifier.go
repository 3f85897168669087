package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"safenest-backend/internal/models"
)

// ClassifierClient calls the external content-analysis service and resolves
// its loosely shaped response into a typed Classification exactly once, at
// this boundary. Results are cached per (user, query) for the length of the
// recency window, so one query session is classified once.
type ClassifierClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
}

func NewClassifierClient(baseURL string, timeout time.Duration, cache *redis.Client) *ClassifierClient {
	return &ClassifierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		cacheTTL:   RecencyWindow,
	}
}

// classifierResponse accepts the field variants the analysis service has
// been observed to emit. Resolution happens here and nowhere else.
type classifierResponse struct {
	IsHarmful      *bool    `json:"isHarmful"`
	PredictedRisk  *string  `json:"predictedRisk"`
	Prediction     *string  `json:"prediction"`
	Result         *string  `json:"result"`
	SentimentScore *float64 `json:"sentimentScore"`
	Sentiment      *float64 `json:"sentiment"`
	Score          *float64 `json:"score"`
}

func (r classifierResponse) resolve() models.Classification {
	label := ""
	for _, candidate := range []*string{r.PredictedRisk, r.Prediction, r.Result} {
		if candidate != nil && strings.TrimSpace(*candidate) != "" {
			label = strings.TrimSpace(*candidate)
			break
		}
	}

	score := 0.0
	for _, candidate := range []*float64{r.SentimentScore, r.Sentiment, r.Score} {
		if candidate != nil {
			score = *candidate
			break
		}
	}

	harmful := false
	if r.IsHarmful != nil {
		harmful = *r.IsHarmful
	} else if label != "" {
		lower := strings.ToLower(label)
		harmful = lower != "safe" && lower != "neutral" && lower != "unknown"
	}

	if label == "" {
		label = "unknown"
	}

	return models.Classification{
		IsHarmful:       harmful,
		PredictedResult: label,
		SentimentScore:  score,
	}
}

// Classify never fails the caller: on any upstream or decode error it logs
// and returns the degraded classification, because ledger availability wins
// over classification accuracy.
func (c *ClassifierClient) Classify(ctx context.Context, userID uuid.UUID, childName, query string) models.Classification {
	cacheKey := fmt.Sprintf("classify:%s:%s", userID, query)

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached models.Classification
			if json.Unmarshal(raw, &cached) == nil {
				return cached
			}
		}
	}

	result, err := c.predict(ctx, userID, childName, query)
	if err != nil {
		log.Printf("classifier: falling back to degraded classification: %v", err)
		return models.DegradedClassification()
	}

	if c.cache != nil {
		if raw, err := json.Marshal(result); err == nil {
			if err := c.cache.Set(ctx, cacheKey, raw, c.cacheTTL).Err(); err != nil {
				log.Printf("classifier: failed to cache result: %v", err)
			}
		}
	}

	return result
}

func (c *ClassifierClient) predict(ctx context.Context, userID uuid.UUID, childName, query string) (models.Classification, error) {
	payload := map[string]interface{}{
		"userId": userID.String(),
		"query":  query,
		"metadata": map[string]interface{}{
			"childName": childName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Classification{}, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Classification{}, fmt.Errorf("failed to read predict response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Classification{}, fmt.Errorf("predict returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded classifierResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.Classification{}, fmt.Errorf("failed to decode predict response: %w", err)
	}

	return decoded.resolve(), nil
}
