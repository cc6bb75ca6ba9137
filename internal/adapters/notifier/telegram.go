package notifier

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"multiTraderBot/internal/domain"
)

// TelegramSink delivers notifications to a Telegram chat.
type TelegramSink struct {
	bot    *bot.Bot
	chatID string
}

// NewTelegramSink creates a Telegram sink for the given bot token and chat.
func NewTelegramSink(token, chatID string) (*TelegramSink, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram token and chat ID are required")
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSink{bot: b, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, n domain.Notification) error {
	text := fmt.Sprintf("[%s] %s\n%s", n.Type, n.Symbol, n.Message)
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
