package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"paidqa/internal/errorz"
	"paidqa/internal/money"
	"paidqa/internal/service"
	"paidqa/internal/storage"
)

const adminTelegramID = 900

func setupBot(t *testing.T) (*Bot, *storage.Store, *time.Time) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	escrow := service.NewEscrowService(store, service.WithClock(func() time.Time { return now }))
	b := New(store, escrow, Config{AdminID: adminTelegramID, WelcomeBonus: money.Amount(10000)})
	return b, store, &now
}

func sender(id int64) *telebot.User {
	return &telebot.User{ID: id, Username: fmt.Sprintf("user%d", id), FirstName: "User"}
}

func TestStartRegistersOnce(t *testing.T) {
	b, store, _ := setupBot(t)
	ctx := context.Background()

	reply, err := b.cmdStart(ctx, sender(1), nil)
	require.NoError(t, err)
	require.Contains(t, reply, "100.00 credits")

	_, err = b.cmdStart(ctx, sender(1), nil)
	require.NoError(t, err)

	user, err := store.GetUserByTelegramID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, money.Amount(10000), user.Balance)
}

// lateUsers reports the first lookup as unknown after another path has
// already registered the user, as when /start races the web app.
type lateUsers struct {
	*storage.Store
	raced bool
}

func (u *lateUsers) GetUserByTelegramID(ctx context.Context, telegramID int64) (*storage.User, error) {
	if !u.raced {
		u.raced = true
		if _, err := u.Store.CreateUser(ctx, telegramID, "web", "Web", money.Amount(10000)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return u.Store.GetUserByTelegramID(ctx, telegramID)
}

func TestStartAfterConcurrentRegistration(t *testing.T) {
	b, store, _ := setupBot(t)
	ctx := context.Background()
	racing := New(&lateUsers{Store: store}, b.escrow, b.cfg)

	reply, err := racing.cmdStart(ctx, sender(3), nil)
	require.NoError(t, err)
	require.Contains(t, reply, "100.00 credits")

	total, err := store.TotalBalance(ctx)
	require.NoError(t, err)
	require.Equal(t, money.Amount(10000), total)
}

func TestCommandsRequireStart(t *testing.T) {
	b, _, _ := setupBot(t)

	_, err := b.cmdBalance(context.Background(), sender(5), nil)
	require.ErrorIs(t, err, errorz.ErrNotFound)
	require.Equal(t, "❌ You haven't started the bot yet, use /start to create your account", errorReply(err))
}

func TestQuestionCommands(t *testing.T) {
	b, store, now := setupBot(t)
	ctx := context.Background()

	_, err := b.cmdStart(ctx, sender(1), nil)
	require.NoError(t, err)
	_, err = b.cmdStart(ctx, sender(2), nil)
	require.NoError(t, err)
	asker, _ := store.GetUserByTelegramID(ctx, 1)
	answerer, _ := store.GetUserByTelegramID(ctx, 2)

	q, err := b.escrow.CreateQuestion(ctx, asker.ID, answerer.ID, "How do I profile Go code?", money.Amount(2500))
	require.NoError(t, err)
	id := fmt.Sprint(q.ID)

	received, err := b.cmdReceived(ctx, sender(2), nil)
	require.NoError(t, err)
	require.Contains(t, received, "How do I profile Go code?")
	require.Contains(t, received, "pending")

	_, err = b.cmdAccept(ctx, sender(1), []string{id})
	require.ErrorIs(t, err, errorz.ErrForbidden)

	reply, err := b.cmdAccept(ctx, sender(2), []string{"#" + id})
	require.NoError(t, err)
	require.Contains(t, reply, "25.00 credits")

	_, err = b.cmdAnswer(ctx, sender(2), []string{id})
	require.ErrorIs(t, err, errorz.ErrValidation)
	_, err = b.cmdAnswer(ctx, sender(2), []string{id, "Use", "pprof"})
	require.NoError(t, err)

	got, err := store.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, "Use pprof", got.Answer.Content)

	*now = now.Add(25 * time.Hour)
	_, err = b.escrow.Settle(ctx, q.ID)
	require.NoError(t, err)

	_, err = b.cmdDispute(ctx, sender(1), []string{id, "Too", "vague"})
	require.NoError(t, err)

	_, err = b.cmdResolve(ctx, sender(1), []string{id, "refund"})
	require.ErrorIs(t, err, errorz.ErrForbidden)
	_, err = b.cmdResolve(ctx, sender(adminTelegramID), []string{id})
	require.ErrorIs(t, err, errorz.ErrValidation)

	reply, err = b.cmdResolve(ctx, sender(adminTelegramID), []string{id, "PARTIAL"})
	require.NoError(t, err)
	require.Contains(t, reply, "partial")

	balance, err := b.cmdBalance(ctx, sender(1), nil)
	require.NoError(t, err)
	require.Contains(t, balance, "87.50 credits")

	asked, err := b.cmdAsked(ctx, sender(1), nil)
	require.NoError(t, err)
	require.Contains(t, asked, "completed")
}

func TestRejectCommand(t *testing.T) {
	b, store, _ := setupBot(t)
	ctx := context.Background()
	b.cmdStart(ctx, sender(1), nil)
	b.cmdStart(ctx, sender(2), nil)
	asker, _ := store.GetUserByTelegramID(ctx, 1)
	answerer, _ := store.GetUserByTelegramID(ctx, 2)

	q, err := b.escrow.CreateQuestion(ctx, asker.ID, answerer.ID, "Why?", money.Amount(1000))
	require.NoError(t, err)

	reply, err := b.cmdReject(ctx, sender(2), []string{fmt.Sprint(q.ID)})
	require.NoError(t, err)
	require.Contains(t, reply, "10.00 credits")

	_, err = b.cmdReject(ctx, sender(2), []string{fmt.Sprint(q.ID)})
	require.ErrorIs(t, err, errorz.ErrConflict)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"12", 12, false},
		{"#7", 7, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseID(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestErrorReply(t *testing.T) {
	require.Equal(t, "❌ Usage: /accept <id>", errorReply(fmt.Errorf("%w: usage: /accept <id>", errorz.ErrValidation)))
	require.Equal(t, "Something went wrong. Please try again.", errorReply(errors.New("database is locked")))
}

func TestFormatQuestionList(t *testing.T) {
	require.Contains(t, formatQuestionList("Asked", nil), "Nothing here yet")

	var questions []*storage.Question
	for i := 1; i <= listLimit+2; i++ {
		questions = append(questions, &storage.Question{
			ID:      int64(i),
			Content: strings.Repeat("x", 100),
			Price:   money.Amount(100),
			Status:  storage.StatusPending,
		})
	}
	out := formatQuestionList("Asked", questions)
	require.True(t, strings.HasPrefix(out, "Asked (12)"))
	require.Contains(t, out, "and 2 more")
	require.Contains(t, out, "⏳ pending | 1.00 credits")
	require.NotContains(t, out, strings.Repeat("x", 61))
}
