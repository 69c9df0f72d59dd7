package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"cleanbuddy-dispatch/res/notification"
)

// notificationService implements the NotificationService interface
type notificationService struct {
	webhookURL string
	httpClient *http.Client
	logger     *log.Logger
}

// slackMessage represents the structure of a Slack message
type slackMessage struct {
	Text string `json:"text"`
}

// New creates a new NotificationService instance
func New(webhookURL string, timeout time.Duration, logger *log.Logger) notification.NotificationService {
	return &notificationService{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (s *notificationService) NotifySweepSummary(ctx context.Context, tenantID string, processed, failed int) error {
	// If webhook URL is not configured, skip notification silently
	if s.webhookURL == "" {
		s.logger.Printf("Slack webhook URL not configured, skipping sweep summary")
		return nil
	}

	message := slackMessage{
		Text: fmt.Sprintf(":warning: Auto-confirm sweep for tenant %s: %d completed, %d failed", tenantID, processed, failed),
	}

	return s.sendToSlack(ctx, message)
}

func (s *notificationService) NotifyLateCancellationAttempt(ctx context.Context, tenantID, appointmentID string, hoursRemaining float64) error {
	if s.webhookURL == "" {
		s.logger.Printf("Slack webhook URL not configured, skipping late cancellation notice")
		return nil
	}

	message := slackMessage{
		Text: fmt.Sprintf(":no_entry: Late cancellation refused\n*Tenant:* %s\n*Appointment:* %s\n*Hours left:* %.2f",
			tenantID, appointmentID, hoursRemaining),
	}

	return s.sendToSlack(ctx, message)
}

// sendToSlack is a helper method to send messages to Slack
func (s *notificationService) sendToSlack(ctx context.Context, message slackMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack API returned non-OK status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
