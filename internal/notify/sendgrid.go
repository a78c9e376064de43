package notify

import (
	"context"
	"fmt"
	"net/http"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/worker"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier delivers HTML email through the SendGrid v3 API.
type SendGridNotifier struct {
	client mailSender
	from   *mail.Email
	logger *zerolog.Logger
}

var _ domain.Notifier = (*SendGridNotifier)(nil)

func NewSendGridNotifier(cfg config.EmailConfig, logger *zerolog.Logger) *SendGridNotifier {
	return newSendGridNotifier(sendgrid.NewSendClient(cfg.SendGridAPIKey), cfg, logger)
}

func newSendGridNotifier(client mailSender, cfg config.EmailConfig, logger *zerolog.Logger) *SendGridNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SendGridNotifier{
		client: client,
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// Notify sends one message. Client errors other than throttling are
// permanent and will not be retried by the worker.
func (s *SendGridNotifier) Notify(ctx context.Context, recipient, subject, htmlBody string) error {
	if recipient == "" {
		return fmt.Errorf("%w: %w", worker.ErrPermanent, domain.Validationf("recipient is required"))
	}

	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", recipient), "", htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return domain.Externalf("sendgrid send", err)
	}

	switch {
	case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500:
		return domain.Externalf("sendgrid send", fmt.Errorf("status %d: %s", response.StatusCode, response.Body))
	case response.StatusCode >= 400:
		return fmt.Errorf("%w: sendgrid rejected message: status %d: %s", worker.ErrPermanent, response.StatusCode, response.Body)
	}

	s.logger.Debug().Str("recipient", recipient).Str("subject", subject).Msg("Email sent")
	return nil
}
