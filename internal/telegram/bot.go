// Package telegram sends run completion notices to a configured chat.
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/store"
)

type Notifier struct {
	bot    *telego.Bot
	chatID int64
}

func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// RunFinished sends a per-game summary of a completed run.
func (n *Notifier) RunFinished(ctx context.Context, run *store.Run, sessions []store.Session) error {
	return n.send(ctx, formatRunSummary(run, sessions))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	for _, chunk := range chunkMessage(text, 4096) {
		msg := tu.Message(tu.ID(n.chatID), chunk)
		if _, err := n.bot.SendMessage(ctx, msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func formatRunSummary(run *store.Run, sessions []store.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s %s\n", run.ID, run.Status)
	fmt.Fprintf(&b, "Agent: %s, games: %d\n", run.Agent, len(run.Games))
	if run.CardID != "" {
		fmt.Fprintf(&b, "Scorecard: %s\n", run.CardID)
	}
	for _, s := range sessions {
		fmt.Fprintf(&b, "\n%s: %s, score %d, %d actions", s.GameID, s.State, s.Score, s.Actions)
	}
	return b.String()
}
