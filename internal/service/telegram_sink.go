package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/telebot.v3"

	"paidqa/internal/logger"
	"paidqa/internal/storage"
)

// Sender is the part of *telebot.Bot the sink needs
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// UserLookup resolves internal user ids to Telegram accounts
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
}

// TelegramSink sends lifecycle events as direct messages to the party that
// did not cause them, and alerts the admin chat about disputes.
type TelegramSink struct {
	sender  Sender
	users   UserLookup
	mu      sync.Mutex
	adminID int64
}

// NewTelegramSink creates a sink; adminID 0 disables dispute alerts.
func NewTelegramSink(sender Sender, users UserLookup, adminID int64) *TelegramSink {
	return &TelegramSink{
		sender:  sender,
		users:   users,
		adminID: adminID,
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

// Deliver implements Sink.
func (s *TelegramSink) Deliver(ctx context.Context, evt Event) error {
	recipientID, text := directMessage(evt)
	if recipientID != 0 && text != "" {
		if err := s.sendToUser(ctx, recipientID, text); err != nil {
			return err
		}
	}
	if evt.Type == EventQuestionDisputed && s.adminID != 0 {
		return s.send(&telebot.User{ID: s.adminID}, disputeAlert(evt))
	}
	return nil
}

func (s *TelegramSink) sendToUser(ctx context.Context, userID int64, text string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user %d: %w", userID, err)
	}
	if user == nil || user.TelegramID == 0 {
		logger.Debug(userID, "notification_skipped", "user has no telegram_id")
		return nil
	}
	return s.send(&telebot.User{ID: user.TelegramID}, text)
}

func (s *TelegramSink) send(to telebot.Recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.sender.Send(to, text, &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2}); err != nil {
		return fmt.Errorf("send to %s: %w", to.Recipient(), err)
	}
	return nil
}

// directMessage picks who hears about evt and what they are told.
func directMessage(evt Event) (int64, string) {
	id := evt.QuestionID
	switch evt.Type {
	case EventQuestionCreated:
		return evt.AnswererID, fmt.Sprintf("❓ *New paid question \\#%d*\n\n📝 %s\n\nPrice: %s\n\nUse /accept %d or /reject %d",
			id, escapeMarkdown(evt.Excerpt), escapeMarkdown(evt.Amount.String()), id, id)
	case EventQuestionAccepted:
		return evt.AskerID, fmt.Sprintf("✅ Your question \\#%d was accepted\\. The answerer is paid %s once the settlement window ends\\.",
			id, escapeMarkdown(evt.Amount.String()))
	case EventQuestionRejected:
		return evt.AskerID, fmt.Sprintf("↩️ Your question \\#%d was rejected\\. %s has been refunded\\.",
			id, escapeMarkdown(evt.Amount.String()))
	case EventQuestionAnswered:
		return evt.AskerID, fmt.Sprintf("💬 Your question \\#%d has been answered\\.", id)
	case EventQuestionPaid:
		return evt.AnswererID, fmt.Sprintf("💰 You received %s for question \\#%d\\.",
			escapeMarkdown(evt.Amount.String()), id)
	case EventQuestionDisputed:
		return evt.AnswererID, fmt.Sprintf("⚠️ *Your answer to question \\#%d has been disputed*\n\nAn admin will review and make the final decision\\.", id)
	case EventQuestionResolved:
		return evt.AskerID, fmt.Sprintf("🏁 Dispute on question \\#%d resolved: *%s*\nRefunded: %s",
			id, escapeMarkdown(string(evt.Resolution)), escapeMarkdown(evt.Amount.String()))
	}
	return 0, ""
}

func disputeAlert(evt Event) string {
	return fmt.Sprintf("⚠️ *Dispute Raised\\!*\n\nQuestion: \\#%d\nPrice: %s\nAsker ID: %d\nAnswerer ID: %d\n\nUse /resolve %d refund\\|pay\\|partial",
		evt.QuestionID,
		escapeMarkdown(evt.Amount.String()),
		evt.AskerID,
		evt.AnswererID,
		evt.QuestionID)
}

// truncateString truncates a string to maxLen runes and adds ellipsis if needed
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune("_*[]()~`>#+-=|{}.!\\", r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
