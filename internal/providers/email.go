package providers

import (
	"context"
	"fmt"
	"time"

	"basement-monitor/internal/config"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/notification"
	"basement-monitor/pkg/email"
)

// SendFunc matches email.Send.
type SendFunc func(server string, port int, username, password, fromName string, to []string, subject, body string) error

// Email delivers notifications over SMTP to a fixed recipient list.
type Email struct {
	cfg    config.EmailConfig
	logger *logging.Logger
	send   SendFunc
}

var _ notification.Channel = (*Email)(nil)

func NewEmail(cfg config.EmailConfig, logger *logging.Logger) (*Email, error) {
	if cfg.SMTPServer == "" || cfg.SMTPPort == 0 || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("missing Email configuration: SMTPServer, SMTPPort, Username, or Password is empty")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("missing Email configuration: no recipients")
	}
	return &Email{cfg: cfg, logger: logger, send: email.Send}, nil
}

// WithSender swaps the SMTP transport. Used by tests.
func (e *Email) WithSender(fn SendFunc) *Email {
	e.send = fn
	return e
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, _ notification.Event, msg notification.Message) error {
	return retry(ctx, e.logger, func() error {
		err := e.send(e.cfg.SMTPServer, e.cfg.SMTPPort, e.cfg.Username, e.cfg.Password, e.cfg.FromName,
			e.cfg.Recipients, msg.Subject, msg.Body)
		if err != nil {
			return fmt.Errorf("failed to send email to %v: %w", e.cfg.Recipients, err)
		}
		return nil
	})
}

// retryDelay is a var so tests don't sleep.
var retryDelay = time.Second
