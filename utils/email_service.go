// utils/email_service.go
package utils

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/gomail.v2"
)

// EmailService sends transactional mail over SMTP.
type EmailService struct {
	dialer *gomail.Dialer
	from   string
	logger *log.Logger
}

// NewEmailService builds the service from SMTP_* environment variables.
func NewEmailService() (*EmailService, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("FROM_EMAIL")

	if host == "" || portStr == "" || user == "" || pass == "" || from == "" {
		return nil, fmt.Errorf("missing SMTP configuration")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP port: %v", err)
	}

	return &EmailService{
		dialer: gomail.NewDialer(host, port, user, pass),
		from:   from,
		logger: log.New(os.Stdout, "[MAIL] ", log.LstdFlags),
	}, nil
}

func (s *EmailService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendVerificationOTP delivers the registration email code.
func (s *EmailService) SendVerificationOTP(to, username string, otp int) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Verify your Email</h2>
			<p>Hello %s,</p>
			<p>Use the following code to verify your email address:</p>
			<h3 style="background-color: #f0f0f0; padding: 10px; font-size: 24px; letter-spacing: 5px; text-align: center;">%d</h3>
			<p>This code expires in 24 hours. If you did not create an account, you can ignore this email.</p>
			<p>Thank you,<br>The Shopsy Team</p>
		</body>
		</html>
	`, username, otp)
	return s.send(to, "Verify your Email", body)
}

// SendResetOTP delivers the password-reset code.
func (s *EmailService) SendResetOTP(to string, otp int, validity time.Duration) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Reset Your Password</h2>
			<p>You requested a password reset. Use the following code to verify your request:</p>
			<h3 style="background-color: #f0f0f0; padding: 10px; font-size: 24px; letter-spacing: 5px; text-align: center;">%d</h3>
			<p>This code expires in %d minutes.</p>
			<p>If you did not request a password reset, please ignore this email or contact support.</p>
			<p>Thank you,<br>The Shopsy Team</p>
		</body>
		</html>
	`, otp, int(validity.Minutes()))
	return s.send(to, "Password Reset Code", body)
}

// SendWelcome fires after a successful verification. Best effort.
func (s *EmailService) SendWelcome(to, username string) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome to Shopsy</h2>
			<p>Hello %s,</p>
			<p>Your account has been verified. Happy shopping!</p>
			<p>Thank you,<br>The Shopsy Team</p>
		</body>
		</html>
	`, username)
	return s.send(to, "Welcome to Shopsy", body)
}

// SendPasswordChanged notifies the account owner of a completed reset.
func (s *EmailService) SendPasswordChanged(to, username string) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Password Changed</h2>
			<p>Hello %s,</p>
			<p>Your account password has been changed. If this wasn't you, reset your password immediately and contact support.</p>
			<p>Thank you,<br>The Shopsy Team</p>
		</body>
		</html>
	`, username)
	return s.send(to, "Password Changed", body)
}

// SendLockoutNotice tells the account owner their account is locked.
func (s *EmailService) SendLockoutNotice(to, username string, until time.Time) error {
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Account Locked</h2>
			<p>Hello %s,</p>
			<p>Your account has been locked after too many failed sign-in attempts. You can try again after %s.</p>
			<p>If this wasn't you, reset your password once the lock expires.</p>
			<p>Thank you,<br>The Shopsy Team</p>
		</body>
		</html>
	`, username, until.Format(time.RFC1123))
	if err := s.send(to, "Account Locked", body); err != nil {
		// Lockout notices are a side effect, never the deliverable.
		s.logger.Printf("Failed to send lockout notice to %s: %v", to, err)
		return err
	}
	return nil
}
