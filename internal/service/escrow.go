package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"paidqa/internal/errorz"
	"paidqa/internal/logger"
	"paidqa/internal/metrics"
	"paidqa/internal/money"
	"paidqa/internal/storage"
)

const (
	DefaultSettlementWindow = 24 * time.Hour
	DefaultPartialRefundBps = 5000

	// RoleOperator is the role allowed to resolve disputes.
	RoleOperator = "operator"

	maxQuestionLength = 2000
	maxAnswerLength   = 5000
	maxReasonLength   = 1000
	maxMessageLength  = 2000
	messagePageSize   = 50
	maxMessagePage    = 200
)

// Store is the persistence the escrow needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx *storage.Tx) error) error
	GetQuestion(ctx context.Context, id int64) (*storage.Question, error)
	GetUserByID(ctx context.Context, id int64) (*storage.User, error)
	ListQuestionsByAsker(ctx context.Context, askerID int64) ([]*storage.Question, error)
	ListQuestionsByAnswerer(ctx context.Context, answererID int64) ([]*storage.Question, error)
	ListQuestionsBetween(ctx context.Context, userA, userB int64) ([]*storage.Question, error)
	ListQuestionsByStatus(ctx context.Context, statuses ...storage.QuestionStatus) ([]*storage.Question, error)
	ListSettlementDue(ctx context.Context, cutoff time.Time) ([]*storage.Question, error)
	ListMessages(ctx context.Context, conversationID string, beforeID int64, limit int) ([]*storage.Message, error)
	ListConversations(ctx context.Context, userID int64) ([]*storage.ConversationSummary, error)
	MarkConversationRead(ctx context.Context, conversationID string, readerID int64, at time.Time) (int64, error)
}

// Messenger posts conversation messages on behalf of the parties.
type Messenger interface {
	PostMessage(ctx context.Context, m storage.Message) (*storage.Message, error)
}

// Operator identifies a dispute resolver.
type Operator struct {
	Subject string
	Role    string
}

// EscrowOption customises an EscrowService.
type EscrowOption func(*EscrowService)

// WithNotifier routes lifecycle events to n.
func WithNotifier(n Notifier) EscrowOption {
	return func(s *EscrowService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithMessenger posts conversation messages through m.
func WithMessenger(m Messenger) EscrowOption {
	return func(s *EscrowService) {
		s.messenger = m
	}
}

// WithSettlementWindow sets how long after acceptance the answerer is paid.
func WithSettlementWindow(d time.Duration) EscrowOption {
	return func(s *EscrowService) {
		if d > 0 {
			s.settlementWindow = d
		}
	}
}

// WithPartialRefundBps sets the asker's share on a partial resolution.
func WithPartialRefundBps(bps uint32) EscrowOption {
	return func(s *EscrowService) {
		if bps <= 10000 {
			s.partialRefundBps = bps
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EscrowOption {
	return func(s *EscrowService) {
		if now != nil {
			s.now = now
		}
	}
}

// EscrowService runs the paid-question state machine. Every transition is a
// single SQL transaction that pairs the status compare-and-swap with its
// ledger effect; messages and events follow only after commit.
type EscrowService struct {
	store            Store
	notifier         Notifier
	messenger        Messenger
	metrics          *metrics.EscrowMetrics
	settlementWindow time.Duration
	partialRefundBps uint32
	now              func() time.Time
}

// NewEscrowService creates the escrow state machine on top of store.
func NewEscrowService(store Store, opts ...EscrowOption) *EscrowService {
	s := &EscrowService{
		store:            store,
		notifier:         nopNotifier{},
		metrics:          metrics.Escrow(),
		settlementWindow: DefaultSettlementWindow,
		partialRefundBps: DefaultPartialRefundBps,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SettlementWindow returns the configured payout delay.
func (s *EscrowService) SettlementWindow() time.Duration {
	return s.settlementWindow
}

func (s *EscrowService) clock() time.Time {
	return s.now().UTC()
}

// CreateQuestion debits price from the asker and opens a pending question.
func (s *EscrowService) CreateQuestion(ctx context.Context, askerID, answererID int64, content string, price money.Amount) (q *storage.Question, err error) {
	defer func() { s.observe("create", askerID, err) }()

	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return nil, fmt.Errorf("%w: question content is required", errorz.ErrValidation)
	case utf8.RuneCountInString(content) > maxQuestionLength:
		return nil, fmt.Errorf("%w: question content exceeds %d characters", errorz.ErrValidation, maxQuestionLength)
	case !price.IsPositive():
		return nil, fmt.Errorf("%w: price must be greater than 0", errorz.ErrValidation)
	case askerID == answererID:
		return nil, fmt.Errorf("%w: cannot ask yourself a question", errorz.ErrValidation)
	}

	for _, id := range []int64{askerID, answererID} {
		user, err := s.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, fmt.Errorf("%w: user %d", errorz.ErrNotFound, id)
		}
	}

	now := s.clock()
	q = &storage.Question{
		AskerID:    askerID,
		AnswererID: answererID,
		Content:    content,
		Price:      price,
		CreatedAt:  now,
	}
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		if _, err := tx.CreateQuestion(ctx, q); err != nil {
			return err
		}
		_, err := tx.Debit(ctx, askerID, price, storage.Entry{
			Source:      storage.SourceQuestionEscrow,
			QuestionID:  q.ID,
			Description: fmt.Sprintf("Escrow for question #%d", q.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedger(string(storage.SourceQuestionEscrow), price.Minor())

	s.post(ctx, storage.Message{
		ConversationID: q.ConversationID,
		SenderID:       askerID,
		ReceiverID:     answererID,
		Content:        "Paid question: " + content,
		Type:           storage.MessageQuestion,
		QuestionID:     q.ID,
		CreatedAt:      now,
	})
	s.notify(newEvent(EventQuestionCreated, q, price, now))
	logger.Debug(askerID, "question_created", fmt.Sprintf("question_id=%d answerer_id=%d price=%s", q.ID, answererID, price))
	return q, nil
}

// AcceptQuestion moves a pending question to accepted and starts the settlement window.
func (s *EscrowService) AcceptQuestion(ctx context.Context, callerID, questionID int64) (q *storage.Question, err error) {
	defer func() { s.observe("accept", callerID, err) }()

	if err := s.requireAnswerer(ctx, callerID, questionID); err != nil {
		return nil, err
	}
	now := s.clock()
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		q, err = tx.TransitionQuestion(ctx, questionID, storage.StatusPending, func(q *storage.Question) error {
			q.Status = storage.StatusAccepted
			q.AcceptedAt = &now
			q.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.post(ctx, storage.Message{
		ConversationID: q.ConversationID,
		SenderID:       q.AnswererID,
		ReceiverID:     q.AskerID,
		Content:        "Accepted your paid question",
		Type:           storage.MessageText,
		QuestionID:     q.ID,
		CreatedAt:      now,
	})
	s.notify(newEvent(EventQuestionAccepted, q, q.Price, now))
	logger.Debug(callerID, "question_accepted", fmt.Sprintf("question_id=%d", q.ID))
	return q, nil
}

// RejectQuestion moves a pending question to rejected and refunds the asker.
func (s *EscrowService) RejectQuestion(ctx context.Context, callerID, questionID int64) (q *storage.Question, err error) {
	defer func() { s.observe("reject", callerID, err) }()

	if err := s.requireAnswerer(ctx, callerID, questionID); err != nil {
		return nil, err
	}
	now := s.clock()
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		q, err = tx.TransitionQuestion(ctx, questionID, storage.StatusPending, func(q *storage.Question) error {
			q.Status = storage.StatusRejected
			q.RejectedAt = &now
			q.UpdatedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		_, err = tx.Credit(ctx, q.AskerID, q.Price, storage.Entry{
			Source:      storage.SourceQuestionRefund,
			QuestionID:  q.ID,
			Description: fmt.Sprintf("Refund for rejected question #%d", q.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedger(string(storage.SourceQuestionRefund), q.Price.Minor())

	s.post(ctx, storage.Message{
		ConversationID: q.ConversationID,
		SenderID:       q.AnswererID,
		ReceiverID:     q.AskerID,
		Content:        "Rejected your paid question, the fee has been refunded",
		Type:           storage.MessageText,
		QuestionID:     q.ID,
		CreatedAt:      now,
	})
	s.notify(newEvent(EventQuestionRejected, q, q.Price, now))
	logger.Debug(callerID, "question_rejected", fmt.Sprintf("question_id=%d refund=%s", q.ID, q.Price))
	return q, nil
}

// AnswerQuestion records the answer on an accepted question.
// The settlement window still runs from acceptance.
func (s *EscrowService) AnswerQuestion(ctx context.Context, callerID, questionID int64, answer string) (q *storage.Question, err error) {
	defer func() { s.observe("answer", callerID, err) }()

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer content is required", errorz.ErrValidation)
	}
	if utf8.RuneCountInString(answer) > maxAnswerLength {
		return nil, fmt.Errorf("%w: answer exceeds %d characters", errorz.ErrValidation, maxAnswerLength)
	}
	if err := s.requireAnswerer(ctx, callerID, questionID); err != nil {
		return nil, err
	}
	now := s.clock()
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		q, err = tx.TransitionQuestion(ctx, questionID, storage.StatusAccepted, func(q *storage.Question) error {
			q.Status = storage.StatusAnswered
			q.Answer = &storage.Answer{Content: answer, AnsweredAt: now}
			q.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.post(ctx, storage.Message{
		ConversationID: q.ConversationID,
		SenderID:       q.AnswererID,
		ReceiverID:     q.AskerID,
		Content:        answer,
		Type:           storage.MessageText,
		QuestionID:     q.ID,
		CreatedAt:      now,
	})
	s.notify(newEvent(EventQuestionAnswered, q, q.Price, now))
	logger.Debug(callerID, "question_answered", fmt.Sprintf("question_id=%d", q.ID))
	return q, nil
}

// Settle pays the answerer once the settlement window after acceptance has
// elapsed. A question that is already paid, not yet due, or no longer in
// accepted/answered state yields errorz.ErrConflict and nothing changes.
func (s *EscrowService) Settle(ctx context.Context, questionID int64) (q *storage.Question, err error) {
	defer func() { s.observe("settle", 0, err) }()

	now := s.clock()
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		current, err := tx.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if current.PaidAt != nil {
			return fmt.Errorf("%w: question %d already paid", errorz.ErrConflict, questionID)
		}
		if current.Status != storage.StatusAccepted && current.Status != storage.StatusAnswered {
			return fmt.Errorf("%w: question %d is %s", errorz.ErrConflict, questionID, current.Status)
		}
		if current.AcceptedAt == nil || now.Sub(*current.AcceptedAt) < s.settlementWindow {
			return fmt.Errorf("%w: settlement window for question %d has not elapsed", errorz.ErrConflict, questionID)
		}

		q, err = tx.TransitionQuestion(ctx, questionID, current.Status, func(q *storage.Question) error {
			q.Status = storage.StatusCompleted
			q.PaidAt = &now
			q.UpdatedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		_, err = tx.Credit(ctx, q.AnswererID, q.Price, storage.Entry{
			Source:      storage.SourceQuestionPayout,
			QuestionID:  q.ID,
			Description: fmt.Sprintf("Payout for question #%d", q.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedger(string(storage.SourceQuestionPayout), q.Price.Minor())

	s.notify(newEvent(EventQuestionPaid, q, q.Price, now))
	logger.Debug(q.AnswererID, "question_paid", fmt.Sprintf("question_id=%d amount=%s", q.ID, q.Price))
	return q, nil
}

// DueForSettlement lists questions whose settlement window has elapsed.
func (s *EscrowService) DueForSettlement(ctx context.Context) ([]*storage.Question, error) {
	return s.store.ListSettlementDue(ctx, s.clock().Add(-s.settlementWindow))
}

// DisputeQuestion lets the asker contest a completed question once.
// Funds stay with the answerer until an operator resolves the dispute.
func (s *EscrowService) DisputeQuestion(ctx context.Context, callerID, questionID int64, reason string) (q *storage.Question, err error) {
	defer func() { s.observe("dispute", callerID, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: dispute reason is required", errorz.ErrValidation)
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return nil, fmt.Errorf("%w: dispute reason exceeds %d characters", errorz.ErrValidation, maxReasonLength)
	}
	current, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if current.AskerID != callerID {
		return nil, fmt.Errorf("%w: only the asker can dispute question %d", errorz.ErrForbidden, questionID)
	}

	now := s.clock()
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		q, err = tx.TransitionQuestion(ctx, questionID, storage.StatusCompleted, func(q *storage.Question) error {
			if q.Dispute != nil {
				return fmt.Errorf("%w: question %d was already disputed", errorz.ErrConflict, q.ID)
			}
			q.Status = storage.StatusDisputed
			q.Dispute = &storage.Dispute{Reason: reason, CreatedAt: now}
			q.UpdatedAt = now
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify(newEvent(EventQuestionDisputed, q, q.Price, now))
	logger.Debug(callerID, "question_disputed", fmt.Sprintf("question_id=%d", q.ID))
	return q, nil
}

// ResolveDispute closes a dispute. refund claws the full price back from the
// answerer to the asker; partial moves PartialRefundBps of it; pay leaves the
// payout in place.
func (s *EscrowService) ResolveDispute(ctx context.Context, op Operator, questionID int64, resolution storage.Resolution) (q *storage.Question, err error) {
	defer func() { s.observe("resolve", 0, err) }()

	if op.Role != RoleOperator || strings.TrimSpace(op.Subject) == "" {
		return nil, fmt.Errorf("%w: operator role required", errorz.ErrForbidden)
	}
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: resolution must be one of refund, pay, partial", errorz.ErrValidation)
	}

	now := s.clock()
	var refund money.Amount
	err = s.store.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		q, err = tx.TransitionQuestion(ctx, questionID, storage.StatusDisputed, func(q *storage.Question) error {
			if q.Dispute == nil {
				return fmt.Errorf("%w: question %d has no dispute record", errorz.ErrConflict, q.ID)
			}
			q.Status = storage.StatusCompleted
			if resolution == storage.ResolutionRefund {
				q.Status = storage.StatusRefunded
			}
			q.Dispute.ResolvedAt = &now
			q.Dispute.ResolvedBy = op.Subject
			q.Dispute.Resolution = resolution
			q.UpdatedAt = now
			return nil
		})
		if err != nil {
			return err
		}

		refund = s.refundFor(q.Price, resolution)
		if refund == 0 {
			return nil
		}
		if _, err := tx.Clawback(ctx, q.AnswererID, refund, storage.Entry{
			Source:      storage.SourceDisputeClawback,
			QuestionID:  q.ID,
			Description: fmt.Sprintf("Dispute %s for question #%d", resolution, q.ID),
		}); err != nil {
			return err
		}
		_, err = tx.Credit(ctx, q.AskerID, refund, storage.Entry{
			Source:      storage.SourceDisputeRefund,
			QuestionID:  q.ID,
			Description: fmt.Sprintf("Dispute %s for question #%d", resolution, q.ID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveLedger(string(storage.SourceDisputeRefund), refund.Minor())

	evt := newEvent(EventQuestionResolved, q, refund, now)
	evt.Resolution = resolution
	s.notify(evt)
	logger.Info(0, "dispute_resolved", fmt.Sprintf("question_id=%d operator=%s resolution=%s refund=%s", q.ID, op.Subject, resolution, refund))
	return q, nil
}

func (s *EscrowService) refundFor(price money.Amount, resolution storage.Resolution) money.Amount {
	switch resolution {
	case storage.ResolutionRefund:
		return price
	case storage.ResolutionPartial:
		return price.MulBps(s.partialRefundBps)
	default:
		return 0
	}
}

// GetQuestion returns a question to one of its parties.
func (s *EscrowService) GetQuestion(ctx context.Context, callerID, questionID int64) (*storage.Question, error) {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}
	if !q.IsParty(callerID) {
		return nil, fmt.Errorf("%w: not a party to question %d", errorz.ErrForbidden, questionID)
	}
	return q, nil
}

// InspectQuestion returns any question to an operator.
func (s *EscrowService) InspectQuestion(ctx context.Context, op Operator, questionID int64) (*storage.Question, error) {
	if op.Role != RoleOperator {
		return nil, fmt.Errorf("%w: operator role required", errorz.ErrForbidden)
	}
	return s.store.GetQuestion(ctx, questionID)
}

// ListDisputes returns open disputes, oldest first, to an operator.
func (s *EscrowService) ListDisputes(ctx context.Context, op Operator) ([]*storage.Question, error) {
	if op.Role != RoleOperator {
		return nil, fmt.Errorf("%w: operator role required", errorz.ErrForbidden)
	}
	return s.store.ListQuestionsByStatus(ctx, storage.StatusDisputed)
}

// ListByAsker returns the caller's asked questions, newest first.
func (s *EscrowService) ListByAsker(ctx context.Context, callerID int64) ([]*storage.Question, error) {
	return s.store.ListQuestionsByAsker(ctx, callerID)
}

// ListByAnswerer returns the caller's received questions, newest first.
func (s *EscrowService) ListByAnswerer(ctx context.Context, callerID int64) ([]*storage.Question, error) {
	return s.store.ListQuestionsByAnswerer(ctx, callerID)
}

// ListConversation returns the questions between the caller and another user.
func (s *EscrowService) ListConversation(ctx context.Context, callerID, otherUserID int64) ([]*storage.Question, error) {
	if callerID == otherUserID {
		return nil, fmt.Errorf("%w: conversation needs two users", errorz.ErrValidation)
	}
	return s.store.ListQuestionsBetween(ctx, callerID, otherUserID)
}

// Messages returns a page of a conversation's messages to one of its
// participants and marks those addressed to the caller as read. beforeID
// pages backwards from an earlier result; limit 0 means the default page.
func (s *EscrowService) Messages(ctx context.Context, callerID int64, conversationID string, beforeID int64, limit int) ([]*storage.Message, error) {
	if _, err := participant(callerID, conversationID); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = messagePageSize
	}
	if limit < 0 || limit > maxMessagePage {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", errorz.ErrValidation, maxMessagePage)
	}
	if beforeID < 0 {
		return nil, fmt.Errorf("%w: invalid message cursor %d", errorz.ErrValidation, beforeID)
	}
	messages, err := s.store.ListMessages(ctx, conversationID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.MarkConversationRead(ctx, conversationID, callerID, s.clock()); err != nil {
		logger.Error(callerID, "mark_read_failed", fmt.Sprintf("conversation_id=%s error=%v", conversationID, err))
	}
	return messages, nil
}

// SendMessage posts a text message from the caller to the other participant
// of conversationID.
func (s *EscrowService) SendMessage(ctx context.Context, callerID int64, conversationID, content string) (*storage.Message, error) {
	receiverID, err := participant(callerID, conversationID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", errorz.ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", errorz.ErrValidation, maxMessageLength)
	}
	if s.messenger == nil {
		return nil, fmt.Errorf("%w: messaging is not configured", errorz.ErrInternal)
	}
	receiver, err := s.store.GetUserByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, fmt.Errorf("%w: user %d", errorz.ErrNotFound, receiverID)
	}

	m, err := s.messenger.PostMessage(ctx, storage.Message{
		ConversationID: conversationID,
		SenderID:       callerID,
		ReceiverID:     receiverID,
		Content:        content,
		Type:           storage.MessageText,
		CreatedAt:      s.clock(),
	})
	if err != nil {
		return nil, err
	}
	logger.Debug(callerID, "message_sent", fmt.Sprintf("conversation_id=%s message_id=%d", conversationID, m.ID))
	return m, nil
}

// Conversations lists the caller's conversations, most recently active first.
func (s *EscrowService) Conversations(ctx context.Context, callerID int64) ([]*storage.ConversationSummary, error) {
	return s.store.ListConversations(ctx, callerID)
}

// participant checks callerID takes part in conversationID and returns the
// other participant.
func participant(callerID int64, conversationID string) (int64, error) {
	a, b, err := storage.ParseConversationID(conversationID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errorz.ErrValidation, err)
	}
	switch callerID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return 0, fmt.Errorf("%w: not a participant of %s", errorz.ErrForbidden, conversationID)
}

// requireAnswerer loads the question and checks the caller is its answerer.
// Parties never change, so the check holds for the transition that follows.
func (s *EscrowService) requireAnswerer(ctx context.Context, callerID, questionID int64) error {
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if q.AnswererID != callerID {
		return fmt.Errorf("%w: only the answerer can act on question %d", errorz.ErrForbidden, questionID)
	}
	return nil
}

func (s *EscrowService) post(ctx context.Context, m storage.Message) {
	if s.messenger == nil {
		return
	}
	if _, err := s.messenger.PostMessage(ctx, m); err != nil {
		logger.Error(m.SenderID, "message_post_failed", fmt.Sprintf("question_id=%d error=%v", m.QuestionID, err))
	}
}

// notify hands evt to the notifier after commit. A panicking notifier is
// logged and cannot fail the transition that already happened.
func (s *EscrowService) notify(evt Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(0, "notify_panic", fmt.Sprintf("event=%s question_id=%d panic=%v", evt.Type, evt.QuestionID, r))
		}
	}()
	s.notifier.Notify(evt)
}

func (s *EscrowService) observe(event string, userID int64, err error) {
	if err == nil {
		s.metrics.ObserveTransition(event, "ok")
		return
	}
	kind := errorz.Kind(err)
	s.metrics.ObserveTransition(event, kind.Error())
	if errors.Is(kind, errorz.ErrInternal) {
		logger.Error(userID, event+"_failed", err.Error())
	}
}
