package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"GroceryScanner/internal/domain"
	"GroceryScanner/internal/ports"
)

// maxDigestLines caps the per-message change listing; the remainder is
// summarized with a count.
const maxDigestLines = 3

// Notifier pushes price-change digests to a Telegram chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ ports.ChangeNotifier = (*Notifier)(nil)

// NewNotifier authenticates the bot with the given token.
func NewNotifier(botToken string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// NotifyChanges posts one message summarizing the detected price movements.
func (n *Notifier) NotifyChanges(_ context.Context, store domain.Store, category string, changes []domain.PriceChangeEvent) error {
	if len(changes) == 0 {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, buildDigest(store, category, changes))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}

func buildDigest(store domain.Store, category string, changes []domain.PriceChangeEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Price changes at %s (%s): %d\n", store, category, len(changes))

	for i, change := range changes {
		if i == maxDigestLines {
			fmt.Fprintf(&b, "... and %d more", len(changes)-maxDigestLines)
			break
		}
		fmt.Fprintf(&b, "%s: R%.2f -> R%.2f (%+.1f%%)\n",
			change.ProductName, change.OldPrice, change.NewPrice, change.ChangePercent)
	}

	return strings.TrimRight(b.String(), "\n")
}
