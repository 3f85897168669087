package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// SMSService sends short-form alerts through the Twilio REST API
// (form-encoded POST with basic auth). Without credentials it runs in dev
// mode and logs instead of sending.
type SMSService struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	devMode    bool
}

func NewSMSService(accountSID, authToken, from string) *SMSService {
	devMode := accountSID == "" || authToken == ""
	if devMode {
		log.Println("⚠ SMS service running in DEV MODE (logging to console)")
	}
	return &SMSService{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    twilioBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		devMode:    devMode,
	}
}

func (s *SMSService) SendSMS(ctx context.Context, to, body string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("sms: recipient phone number is empty")
	}

	if s.devMode {
		log.Printf("📱 [DEV SMS] To: %s | %s", to, body)
		return nil
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("sms: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sms: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("sms: twilio returned %d: %s (code=%d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("sms: twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	log.Printf("📱 SMS sent to %s", to)
	return nil
}
