package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/telebot.v3"

	"paidqa/internal/errorz"
	"paidqa/internal/logger"
	"paidqa/internal/money"
	"paidqa/internal/service"
	"paidqa/internal/storage"
)

const (
	commandTimeout = 10 * time.Second
	listLimit      = 10
)

// Users is the account storage the bot registers into.
type Users interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*storage.User, error)
	CreateUser(ctx context.Context, telegramID int64, username, firstName string, welcomeBonus money.Amount) (*storage.User, error)
}

// Config holds bot settings
type Config struct {
	WebAppURL    string
	AdminID      int64
	WelcomeBonus money.Amount
}

// Bot answers Telegram commands by driving the escrow.
type Bot struct {
	users  Users
	escrow *service.EscrowService
	cfg    Config
}

// New creates the command set.
func New(users Users, escrow *service.EscrowService, cfg Config) *Bot {
	if cfg.WebAppURL == "" {
		cfg.WebAppURL = "http://localhost:8080"
	}
	return &Bot{users: users, escrow: escrow, cfg: cfg}
}

// NewTelebot connects to Telegram with long polling.
func NewTelebot(token string) (*telebot.Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token: token,
		Poller: &telebot.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}

// command is a text command: it gets the sender and arguments and returns the reply.
type command func(ctx context.Context, sender *telebot.User, args []string) (string, error)

// Register installs every command handler on tb.
func (b *Bot) Register(tb *telebot.Bot) {
	tb.Handle("/start", b.handleStart)
	tb.Handle("/help", func(c telebot.Context) error {
		logger.Debug(c.Sender().ID, "command_help", "")
		return c.Send(helpText)
	})
	tb.Handle("/balance", b.wrap("balance", b.cmdBalance))
	tb.Handle("/asked", b.wrap("asked", b.cmdAsked))
	tb.Handle("/received", b.wrap("received", b.cmdReceived))
	tb.Handle("/accept", b.wrap("accept", b.cmdAccept))
	tb.Handle("/reject", b.wrap("reject", b.cmdReject))
	tb.Handle("/answer", b.wrap("answer", b.cmdAnswer))
	tb.Handle("/dispute", b.wrap("dispute", b.cmdDispute))
	tb.Handle("/resolve", b.wrap("resolve", b.cmdResolve))
}

func (b *Bot) wrap(name string, cmd command) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		logger.Debug(sender.ID, "command_"+name, strings.Join(c.Args(), " "))

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		reply, err := cmd(ctx, sender, c.Args())
		if err != nil {
			logger.Debug(sender.ID, name+"_error", "error="+err.Error())
			return c.Send(errorReply(err))
		}
		return c.Send(reply)
	}
}

func (b *Bot) handleStart(c telebot.Context) error {
	sender := c.Sender()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	reply, err := b.cmdStart(ctx, sender, nil)
	if err != nil {
		logger.Error(sender.ID, "start_error", "error="+err.Error())
		return c.Send("Error creating user. Please try again.")
	}

	btn := telebot.InlineButton{
		Text:   "💬 Open Paid Questions",
		WebApp: &telebot.WebApp{URL: b.cfg.WebAppURL},
	}
	return c.Send(reply, &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{{btn}},
	})
}

const helpText = "📚 Available Commands\n\n" +
	"/start - Register and receive your welcome bonus\n" +
	"/balance - Check your current balance\n" +
	"/asked - Questions you asked\n" +
	"/received - Questions you received\n" +
	"/accept <id> - Accept a pending question\n" +
	"/reject <id> - Reject a pending question and refund the asker\n" +
	"/answer <id> <text> - Answer an accepted question\n" +
	"/dispute <id> <reason> - Dispute a completed question\n" +
	"/help - Show this help message\n\n" +
	"Open the web app to ask paid questions!"

func (b *Bot) cmdStart(ctx context.Context, sender *telebot.User, _ []string) (string, error) {
	user, err := b.users.GetUserByTelegramID(ctx, sender.ID)
	if err != nil {
		return "", err
	}
	if user == nil {
		user, err = b.users.CreateUser(ctx, sender.ID, sender.Username, sender.FirstName, b.cfg.WelcomeBonus)
		switch {
		case errors.Is(err, errorz.ErrConflict):
			// Registered concurrently through the web app.
			if user, err = b.registered(ctx, sender); err != nil {
				return "", err
			}
		case err != nil:
			return "", err
		default:
			logger.Info(user.ID, "user_registered", fmt.Sprintf("telegram_id=%d welcome_bonus=%s source=bot", sender.ID, b.cfg.WelcomeBonus))
		}
	}
	return fmt.Sprintf("Welcome to Paid Questions! 🎉\n\nHi, %s! You have %s.\n\nAsk experts paid questions and get answers. Click the button below to start:",
		user.FirstName, formatBalance(user.Balance)), nil
}

// registered returns the sender's account or a NotFound error asking them to /start.
func (b *Bot) registered(ctx context.Context, sender *telebot.User) (*storage.User, error) {
	user, err := b.users.GetUserByTelegramID(ctx, sender.ID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errNotStarted
	}
	return user, nil
}

var errNotStarted = fmt.Errorf("%w: you haven't started the bot yet, use /start to create your account", errorz.ErrNotFound)

func (b *Bot) cmdBalance(ctx context.Context, sender *telebot.User, _ []string) (string, error) {
	user, err := b.registered(ctx, sender)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💰 Your Balance\n\nCurrent Balance: %s", formatBalance(user.Balance)), nil
}

func (b *Bot) cmdAsked(ctx context.Context, sender *telebot.User, _ []string) (string, error) {
	user, err := b.registered(ctx, sender)
	if err != nil {
		return "", err
	}
	questions, err := b.escrow.ListByAsker(ctx, user.ID)
	if err != nil {
		return "", err
	}
	return formatQuestionList("❓ Questions you asked", questions), nil
}

func (b *Bot) cmdReceived(ctx context.Context, sender *telebot.User, _ []string) (string, error) {
	user, err := b.registered(ctx, sender)
	if err != nil {
		return "", err
	}
	questions, err := b.escrow.ListByAnswerer(ctx, user.ID)
	if err != nil {
		return "", err
	}
	return formatQuestionList("📥 Questions you received", questions), nil
}

func (b *Bot) cmdAccept(ctx context.Context, sender *telebot.User, args []string) (string, error) {
	user, id, _, err := b.parseQuestionCommand(ctx, sender, args, "/accept <id>", false)
	if err != nil {
		return "", err
	}
	q, err := b.escrow.AcceptQuestion(ctx, user.ID, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Question #%d accepted. You will be paid %s once the settlement window ends. Reply with /answer %d <text>.",
		q.ID, formatBalance(q.Price), q.ID), nil
}

func (b *Bot) cmdReject(ctx context.Context, sender *telebot.User, args []string) (string, error) {
	user, id, _, err := b.parseQuestionCommand(ctx, sender, args, "/reject <id>", false)
	if err != nil {
		return "", err
	}
	q, err := b.escrow.RejectQuestion(ctx, user.ID, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("↩️ Question #%d rejected. %s was refunded to the asker.", q.ID, formatBalance(q.Price)), nil
}

func (b *Bot) cmdAnswer(ctx context.Context, sender *telebot.User, args []string) (string, error) {
	user, id, text, err := b.parseQuestionCommand(ctx, sender, args, "/answer <id> <text>", true)
	if err != nil {
		return "", err
	}
	q, err := b.escrow.AnswerQuestion(ctx, user.ID, id, text)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💬 Answer to question #%d sent.", q.ID), nil
}

func (b *Bot) cmdDispute(ctx context.Context, sender *telebot.User, args []string) (string, error) {
	user, id, reason, err := b.parseQuestionCommand(ctx, sender, args, "/dispute <id> <reason>", true)
	if err != nil {
		return "", err
	}
	q, err := b.escrow.DisputeQuestion(ctx, user.ID, id, reason)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("⚠️ Dispute on question #%d recorded. An admin will review and make the final decision.", q.ID), nil
}

// cmdResolve is only available in the admin's chat.
func (b *Bot) cmdResolve(ctx context.Context, sender *telebot.User, args []string) (string, error) {
	if b.cfg.AdminID == 0 || sender.ID != b.cfg.AdminID {
		return "", fmt.Errorf("%w: only the admin can resolve disputes", errorz.ErrForbidden)
	}
	if len(args) != 2 {
		return "", fmt.Errorf("%w: usage: /resolve <id> <refund|pay|partial>", errorz.ErrValidation)
	}
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	op := service.Operator{Subject: "telegram:" + strconv.FormatInt(sender.ID, 10), Role: service.RoleOperator}
	q, err := b.escrow.ResolveDispute(ctx, op, id, storage.Resolution(strings.ToLower(args[1])))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🏁 Dispute on question #%d resolved as %s. Status: %s.", q.ID, q.Dispute.Resolution, q.Status), nil
}

// parseQuestionCommand resolves the sender and parses "<id> [text...]".
func (b *Bot) parseQuestionCommand(ctx context.Context, sender *telebot.User, args []string, usage string, needText bool) (*storage.User, int64, string, error) {
	if len(args) < 1 || (needText && len(args) < 2) {
		return nil, 0, "", fmt.Errorf("%w: usage: %s", errorz.ErrValidation, usage)
	}
	id, err := parseID(args[0])
	if err != nil {
		return nil, 0, "", err
	}
	user, err := b.registered(ctx, sender)
	if err != nil {
		return nil, 0, "", err
	}
	return user, id, strings.Join(args[1:], " "), nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid question id %q", errorz.ErrValidation, raw)
	}
	return id, nil
}

// errorReply turns a command error into a user-facing message.
func errorReply(err error) string {
	kind := errorz.Kind(err)
	if errors.Is(kind, errorz.ErrInternal) {
		return "Something went wrong. Please try again."
	}
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, kind.Error()) {
		msg = msg[i+2:]
	}
	return "❌ " + upperFirst(msg)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatBalance formats an amount for chat messages
func formatBalance(a money.Amount) string {
	return a.String() + " credits"
}

var statusEmoji = map[storage.QuestionStatus]string{
	storage.StatusPending:   "⏳",
	storage.StatusAccepted:  "🟢",
	storage.StatusRejected:  "🔴",
	storage.StatusAnswered:  "💬",
	storage.StatusCompleted: "✅",
	storage.StatusDisputed:  "⚠️",
	storage.StatusRefunded:  "↩️",
}

func formatQuestionList(title string, questions []*storage.Question) string {
	if len(questions) == 0 {
		return title + "\n\nNothing here yet. Open the web app to ask a question!"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d)\n\n", title, len(questions))
	for i, q := range questions {
		if i == listLimit {
			fmt.Fprintf(&sb, "…and %d more in the web app.", len(questions)-listLimit)
			break
		}
		fmt.Fprintf(&sb, "#%d %s %s | %s\n   📝 %s\n\n",
			q.ID, statusEmoji[q.Status], q.Status, formatBalance(q.Price), truncate(q.Content, 60))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxLen-3])) + "..."
}
