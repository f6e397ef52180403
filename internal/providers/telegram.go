package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"basement-monitor/internal/config"
	"basement-monitor/internal/logging"
	"basement-monitor/internal/notification"
)

// telegramSender is the subset of *bot.Bot we use.
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram posts notifications to one or more chats through a bot.
type Telegram struct {
	bot     telegramSender
	chatIDs []int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

var _ notification.Channel = (*Telegram)(nil)

func NewTelegram(cfg config.TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("missing bot_token in Telegram configuration")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, fmt.Errorf("missing chat_id in Telegram configuration")
	}
	// the bot is only used for outgoing messages, skip the getMe probe
	b, err := bot.New(cfg.BotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	return newTelegram(b, cfg, logger), nil
}

func newTelegram(sender telegramSender, cfg config.TelegramConfig, logger *logging.Logger) *Telegram {
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Telegram{
		bot:     sender,
		chatIDs: cfg.ChatIDs,
		limiter: rate.NewLimiter(rate.Limit(float64(perSecond)), perSecond),
		logger:  logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, evt notification.Event, msg notification.Message) error {
	text := fmt.Sprintf("*%s*\n%s", bot.EscapeMarkdown(msg.Subject), bot.EscapeMarkdown(msg.Body))

	var errs []error
	for _, chatID := range t.chatIDs {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limit exceeded: %w", err)
		}
		err := retry(ctx, t.logger, func() error {
			params := &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: models.ParseModeMarkdown,
			}
			if _, err := t.bot.SendMessage(ctx, params); err != nil {
				return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
