package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"paysync/internal/payment"
)

type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts notifications to an operator chat.
type Telegram struct {
	bot    telegramSender
	chatID int64
	types  map[payment.NotificationType]bool
	logger *zap.Logger
}

// NewTelegram builds a send-only bot; it never polls for updates. types
// limits what is forwarded, nil forwards everything.
func NewTelegram(token string, chatID int64, types []payment.NotificationType, logger *zap.Logger) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}
	return newTelegram(bot, chatID, types, logger), nil
}

func newTelegram(bot telegramSender, chatID int64, types []payment.NotificationType, logger *zap.Logger) *Telegram {
	t := &Telegram{bot: bot, chatID: chatID, logger: logger}
	if len(types) > 0 {
		t.types = make(map[payment.NotificationType]bool, len(types))
		for _, typ := range types {
			t.types[typ] = true
		}
	}
	return t
}

func (t *Telegram) Notify(_ context.Context, n payment.Notification) error {
	if t.types != nil && !t.types[n.Type] {
		return nil
	}
	if _, err := t.bot.Send(tele.ChatID(t.chatID), formatTelegram(n), tele.ModeHTML); err != nil {
		return fmt.Errorf("telegram notify %s: %w", n.Type, err)
	}
	return nil
}

func formatTelegram(n payment.Notification) string {
	var title string
	switch n.Type {
	case payment.NotifyOrderCompleted:
		title = "✅ Order paid"
	case payment.NotifyPaymentFailed:
		title = "❌ Payment failed"
	case payment.NotifyRefundIssued:
		title = "↩️ Refund issued"
	case payment.NotifyNeedsReconciliation:
		title = "⚠️ Payment needs reconciliation"
	default:
		title = string(n.Type)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", title)
	fmt.Fprintf(&b, "Order: <code>%s</code>\n", html.EscapeString(n.OrderShortID))
	fmt.Fprintf(&b, "Amount: %d %s\n", n.Amount, html.EscapeString(n.Currency))
	if n.GatewayPaymentID != "" {
		fmt.Fprintf(&b, "Payment: <code>%s</code>\n", html.EscapeString(n.GatewayPaymentID))
	}
	if n.RefundID != "" {
		fmt.Fprintf(&b, "Refund: <code>%s</code>\n", html.EscapeString(n.RefundID))
	}
	if n.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", html.EscapeString(n.Reason))
	}
	return strings.TrimRight(b.String(), "\n")
}
