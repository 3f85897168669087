package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"safenest-backend/internal/models"
)

// LedgerClient posts flush payloads to the backend's log-time endpoint,
// authenticating with the parent account's agent token.
type LedgerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewLedgerClient(baseURL, token string) *LedgerClient {
	return &LedgerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *LedgerClient) LogTime(ctx context.Context, payload models.LogTimeRequest) (*models.LogTimeResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode log-time payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/activity/log-time", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build log-time request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("log-time request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log-time response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("log-time returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded models.LogTimeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode log-time response: %w", err)
	}
	return &decoded, nil
}
