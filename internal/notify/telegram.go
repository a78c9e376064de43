package notify

import (
	"context"
	"errors"
	"fmt"

	"rentcrm/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier alerts managers about booking activity.
type TelegramNotifier struct {
	bot      messageSender
	managers []int64
	logger   *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return newTelegramNotifier(bot, cfg.Managers, logger), nil
}

func newTelegramNotifier(bot messageSender, managers []int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{bot: bot, managers: managers, logger: logger}
}

// AlertManagers sends text to every manager. It fails only when no manager
// could be reached, so a retry never spams those who already got it.
func (t *TelegramNotifier) AlertManagers(ctx context.Context, text string) error {
	if len(t.managers) == 0 {
		return nil
	}

	var errs []error
	for _, managerID := range t.managers {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(managerID, text)
		if _, err := t.bot.Send(msg); err != nil {
			t.logger.Warn().Err(err).Int64("manager_id", managerID).Msg("Failed to alert manager")
			errs = append(errs, err)
		}
	}

	if len(errs) == len(t.managers) {
		return fmt.Errorf("alert managers: %w", errors.Join(errs...))
	}
	return nil
}
