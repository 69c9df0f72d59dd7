package sidemail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	netmail "net/mail"
	"strings"
	"time"

	"cleanbuddy-dispatch/res/mail"
)

const (
	templateInvoiceReceipt     = "Invoice receipt"
	templateCancellationNotice = "Appointment cancelled"
)

// SidemailService implements the MailService interface using Sidemail API
type SidemailService struct {
	apiKey      string
	apiBaseURL  string
	fromAddress string
	logger      *log.Logger
	httpClient  *http.Client
}

// New creates a new Sidemail service instance
func New(apiKey, apiURL, fromAddress string, timeout time.Duration, logger *log.Logger) mail.MailService {
	return &SidemailService{
		apiKey:      apiKey,
		apiBaseURL:  apiURL,
		fromAddress: fromAddress,
		logger:      logger,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// SidemailEmailPayload is the body of a templated send through the Sidemail API
type SidemailEmailPayload struct {
	ToAddress     string                 `json:"toAddress"`
	FromAddress   string                 `json:"fromAddress,omitempty"`
	TemplateName  string                 `json:"templateName"`
	TemplateProps map[string]interface{} `json:"templateProps,omitempty"`
}

// SidemailEmailResponse represents the response from Sidemail email API
type SidemailEmailResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// validateEmail validates an email address format using Go's built-in mail parser.
func (s *SidemailService) validateEmail(email string) error {
	_, err := netmail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}

// sanitizeInput removes control characters and null bytes and trims whitespace
func (s *SidemailService) sanitizeInput(input string) string {
	cleaned := strings.ReplaceAll(input, "\x00", "")
	cleaned = strings.ReplaceAll(cleaned, "\r", "")
	cleaned = strings.ReplaceAll(cleaned, "\n", "")
	return strings.TrimSpace(cleaned)
}

// sanitizeResponseBody sanitizes response body for safe inclusion in error messages
func (s *SidemailService) sanitizeResponseBody(body string) string {
	const maxLength = 200
	sanitized := s.sanitizeInput(body)

	if len(sanitized) > maxLength {
		return sanitized[:maxLength] + "..."
	}
	return sanitized
}

// SendInvoiceReceipt emails a paid invoice. Without an API key it is a no-op.
func (s *SidemailService) SendInvoiceReceipt(ctx context.Context, email, displayName string, receipt mail.InvoiceReceipt) error {
	if s.apiKey == "" {
		s.logger.Printf("Sidemail API key not configured, skipping invoice receipt")
		return nil
	}

	return s.send(ctx, email, templateInvoiceReceipt, map[string]interface{}{
		"name":          s.sanitizeInput(displayName),
		"invoiceNumber": s.sanitizeInput(receipt.InvoiceNumber),
		"amount":        receipt.Amount,
		"paidAt":        receipt.PaidAt.Format(time.RFC3339),
		"appointmentId": s.sanitizeInput(receipt.AppointmentID),
	})
}

// SendCancellationNotice confirms a cancellation. Without an API key it is a no-op.
func (s *SidemailService) SendCancellationNotice(ctx context.Context, email, displayName, appointmentID string, startTime time.Time) error {
	if s.apiKey == "" {
		s.logger.Printf("Sidemail API key not configured, skipping cancellation notice")
		return nil
	}

	return s.send(ctx, email, templateCancellationNotice, map[string]interface{}{
		"name":          s.sanitizeInput(displayName),
		"appointmentId": s.sanitizeInput(appointmentID),
		"startTime":     startTime.Format(time.RFC3339),
	})
}

func (s *SidemailService) send(ctx context.Context, email, template string, props map[string]interface{}) error {
	if err := s.validateEmail(email); err != nil {
		return fmt.Errorf("%s failed: %w", template, err)
	}

	payload := SidemailEmailPayload{
		ToAddress:     s.sanitizeInput(email),
		FromAddress:   s.fromAddress,
		TemplateName:  template,
		TemplateProps: props,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %w", err)
	}

	url := fmt.Sprintf("%s/email/send", s.apiBaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	return s.handleSidemailEmailResponse(resp, template)
}

// handleSidemailEmailResponse validates a response from the Sidemail email API and logs the outcome
func (s *SidemailService) handleSidemailEmailResponse(resp *http.Response, operation string) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	s.logger.Printf("[SIDEMAIL_EMAIL_RESPONSE] status=%d operation=%s body_length=%d", resp.StatusCode, operation, len(body))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("sidemail email API returned status %d: %s", resp.StatusCode, s.sanitizeResponseBody(string(body)))
	}

	var response SidemailEmailResponse
	if err := json.Unmarshal(body, &response); err != nil {
		s.logger.Printf("Warning: Could not parse Sidemail email response: %v", err)
	}

	s.logger.Printf("[SIDEMAIL_EMAIL_SUCCESS] operation=%s id=%s status=%s", operation, response.ID, response.Status)
	return nil
}
