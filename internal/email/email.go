package email

import (
	"context"
	"fmt"
	"time"

	"spicywod/internal/config"
	"spicywod/internal/logger"
	"spicywod/internal/models"

	"github.com/mailgun/mailgun-go/v5"
)

// Notifier sends account emails. Handlers depend on this so tests can swap in
// a recorder.
type Notifier interface {
	IsEnabled() bool
	SendWelcomeEmail(ctx context.Context, user *models.User) error
}

type Service struct {
	client      mailgun.Mailgun
	domain      string
	senderEmail string
	senderName  string
	enabled     bool
}

func NewService(cfg *config.Config) *Service {
	enabled := cfg.MailgunDomain != "" && cfg.MailgunAPIKey != ""

	var client mailgun.Mailgun
	if enabled {
		client = mailgun.NewMailgun(cfg.MailgunAPIKey)
	}

	return &Service{
		client:      client,
		domain:      cfg.MailgunDomain,
		senderEmail: cfg.MailgunSenderEmail,
		senderName:  cfg.MailgunSenderName,
		enabled:     enabled,
	}
}

func (s *Service) IsEnabled() bool {
	return s.enabled
}

func (s *Service) SendWelcomeEmail(ctx context.Context, user *models.User) error {
	if !s.enabled {
		return fmt.Errorf("email service is not configured")
	}

	message := mailgun.NewMessage(
		s.domain,
		s.from(),
		"Welcome to SpicyWOD",
		generateWelcomeText(user),
		user.Email,
	)
	message.SetHTML(generateWelcomeHTML(user))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	logger.Info("Welcome email sent", "email", user.Email, "response", resp)
	return nil
}

func (s *Service) from() string {
	if s.senderName == "" {
		return s.senderEmail
	}
	return fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
}

// SendWelcomeAsync sends the welcome email in the background. Failures are
// logged and never reach the caller.
func SendWelcomeAsync(n Notifier, user *models.User) {
	if n == nil || !n.IsEnabled() {
		return
	}
	go func() {
		if err := n.SendWelcomeEmail(context.Background(), user); err != nil {
			logger.Warn("Failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}()
}
