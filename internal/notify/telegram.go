// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify pushes forecast changes and sensor link changes to a
// Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/relabs-tech/barometer_forecaster/internal/events"
	"github.com/relabs-tech/barometer_forecaster/internal/forecast"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier turns bus events into chat messages. It only speaks when
// something changes: a new forecast category or a new link state.
type Notifier struct {
	sender Sender
	chatID int64
	logger *slog.Logger

	category forecast.Category
	link     events.ConnectionState
}

// NewTelegram authorizes against the bot API with token.
func NewTelegram(token string, chatID int64, logger *slog.Logger) (*Notifier, error) {
	if token == "" {
		return nil, errors.New("telegram token cannot be empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new bot api: %w", err)
	}
	n := New(bot, chatID, logger)
	n.logger.Info("telegram authorized", "account", bot.Self.UserName)
	return n, nil
}

func New(sender Sender, chatID int64, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger.With("component", "telegram"),
	}
}

// Message returns the text for e, or "" when e does not change what the
// chat already knows. It updates the notifier's view of the station.
func (n *Notifier) Message(e events.Event) string {
	switch e.Kind {
	case events.KindForecast:
		if e.Forecast.Category == n.category {
			return ""
		}
		prev := n.category
		n.category = e.Forecast.Category
		if prev == forecast.Unknown {
			return fmt.Sprintf("Forecast: %s (%+.2f hPa/h)", e.Forecast.Category.Label(), e.Forecast.Rate)
		}
		return fmt.Sprintf("Forecast changed: %s → %s (%+.2f hPa/h)",
			prev.Label(), e.Forecast.Category.Label(), e.Forecast.Rate)

	case events.KindStatus:
		if e.Status.State == n.link {
			return ""
		}
		prev := n.link
		n.link = e.Status.State
		switch {
		case e.Status.State == events.ConnectionError:
			return fmt.Sprintf("Barometer unreachable: %s", e.Status.Error)
		case prev == events.ConnectionError:
			return "Barometer back online"
		}
	}
	return ""
}

// Run notifies for every event on ch until ch closes or ctx is done.
func (n *Notifier) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			text := n.Message(e)
			if text == "" {
				continue
			}
			if _, err := n.sender.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
				n.logger.Warn("failed to send message", "kind", e.Kind, "error", err)
			}
		}
	}
}
