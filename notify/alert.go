// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Alerter raises operational alerts that need a human
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// LogAlerter writes alerts to the error log
type LogAlerter struct{}

func (LogAlerter) Alert(_ context.Context, message string) {
	slog.Error("operational alert", "message", message)
}

type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts alerts to an operator chat. Send failures fall
// back to the log.
type TelegramAlerter struct {
	bot    botSender
	chatID int64
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID}, nil
}

func (a *TelegramAlerter) Alert(_ context.Context, message string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, "⚠️ assocvote: "+message)); err != nil {
		slog.Error("telegram alert failed", "error", err, "message", message)
	}
}
