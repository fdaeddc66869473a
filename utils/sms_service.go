// utils/sms_service.go
package utils

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMSService sends OTP codes through the Twilio Messages API.
type SMSService struct {
	AccountSID string
	AuthToken  string
	From       string
	APIBase    string
	Client     *http.Client
	logger     *log.Logger
}

// NewSMSService builds the service from TWILIO_* environment variables.
func NewSMSService() *SMSService {
	return &SMSService{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		From:       os.Getenv("TWILIO_PHONE_NUMBER"),
		APIBase:    "https://api.twilio.com/2010-04-01",
		Client:     &http.Client{Timeout: 10 * time.Second},
		logger:     log.New(os.Stdout, "[SMS] ", log.LstdFlags),
	}
}

// SendOTP delivers a verification code to an E.164 number. The send is
// awaited: callers treat a failure here as a failed request so the user
// knows the code never left.
func (s *SMSService) SendOTP(phone string, otp int) error {
	if s.AccountSID == "" || s.AuthToken == "" || s.From == "" {
		return fmt.Errorf("missing Twilio configuration")
	}

	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.From)
	form.Set("Body", fmt.Sprintf("Your Shopsy verification code is: %d. Do not share this code with anyone. Didn't request this? Ignore it, your account is safe.", otp))

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.APIBase, s.AccountSID)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(s.AccountSID, s.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Retries after a network timeout must not double-send the code.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, string(body))
	}

	s.logger.Printf("SMS sent successfully to %s", phone)
	return nil
}
