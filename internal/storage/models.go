package storage

import (
	"fmt"
	"strings"
	"time"

	"paidqa/internal/money"
)

// User represents a registered user of the app
type User struct {
	ID         int64        `json:"id"`
	TelegramID int64        `json:"telegram_id"`
	Username   string       `json:"username"`
	FirstName  string       `json:"first_name"`
	Balance    money.Amount `json:"balance"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// SourceType classifies a ledger movement
type SourceType string

const (
	SourceWelcomeBonus    SourceType = "WELCOME_BONUS"
	SourceQuestionEscrow  SourceType = "QUESTION_ESCROW"
	SourceQuestionRefund  SourceType = "QUESTION_REFUND"
	SourceQuestionPayout  SourceType = "QUESTION_PAYOUT"
	SourceDisputeRefund   SourceType = "DISPUTE_REFUND"
	SourceDisputeClawback SourceType = "DISPUTE_CLAWBACK"
)

// Transaction is one audited balance change
type Transaction struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Amount      money.Amount `json:"amount"`
	SourceType  SourceType   `json:"source_type"`
	QuestionID  int64        `json:"question_id,omitempty"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Entry describes the audit record written alongside a balance change
type Entry struct {
	Source      SourceType
	QuestionID  int64
	Description string
}

// QuestionStatus is the lifecycle state of a paid question
type QuestionStatus uint8

const (
	StatusPending QuestionStatus = iota + 1
	StatusAccepted
	StatusRejected
	StatusAnswered
	StatusCompleted
	StatusDisputed
	StatusRefunded
)

var statusNames = map[QuestionStatus]string{
	StatusPending:   "pending",
	StatusAccepted:  "accepted",
	StatusRejected:  "rejected",
	StatusAnswered:  "answered",
	StatusCompleted: "completed",
	StatusDisputed:  "disputed",
	StatusRefunded:  "refunded",
}

// allowedTransitions is the complete edge set of the question lifecycle.
var allowedTransitions = map[QuestionStatus][]QuestionStatus{
	StatusPending:   {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusAnswered, StatusCompleted},
	StatusAnswered:  {StatusCompleted},
	StatusCompleted: {StatusDisputed},
	StatusDisputed:  {StatusCompleted, StatusRefunded},
}

func (s QuestionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("QuestionStatus(%d)", uint8(s))
}

// Valid reports whether s is one of the known statuses.
func (s QuestionStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s QuestionStatus) CanTransitionTo(next QuestionStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s QuestionStatus) Terminal() bool {
	return s.Valid() && len(allowedTransitions[s]) == 0
}

// ParseQuestionStatus converts a status name to its QuestionStatus.
func ParseQuestionStatus(name string) (QuestionStatus, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for status, candidate := range statusNames {
		if candidate == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown question status %q", name)
}

func (s QuestionStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid question status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *QuestionStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseQuestionStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Resolution is the operator's verdict on a dispute
type Resolution string

const (
	ResolutionRefund  Resolution = "refund"
	ResolutionPay     Resolution = "pay"
	ResolutionPartial Resolution = "partial"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionRefund, ResolutionPay, ResolutionPartial:
		return true
	}
	return false
}

// Answer is the answerer's reply to a question
type Answer struct {
	Content    string    `json:"content"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Dispute records the asker's objection and its resolution
type Dispute struct {
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Resolution Resolution `json:"resolution,omitempty"`
}

// Question is a paid question between two users
type Question struct {
	ID             int64          `json:"id"`
	AskerID        int64          `json:"asker_id"`
	AnswererID     int64          `json:"answerer_id"`
	Content        string         `json:"content"`
	Price          money.Amount   `json:"price"`
	Status         QuestionStatus `json:"status"`
	ConversationID string         `json:"conversation_id"`
	Answer         *Answer        `json:"answer,omitempty"`
	Dispute        *Dispute       `json:"dispute,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	AcceptedAt     *time.Time     `json:"accepted_at,omitempty"`
	RejectedAt     *time.Time     `json:"rejected_at,omitempty"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsParty reports whether userID is the asker or the answerer.
func (q *Question) IsParty(userID int64) bool {
	return q.AskerID == userID || q.AnswererID == userID
}

// Clone returns a deep copy so mutations do not leak into the original.
func (q *Question) Clone() *Question {
	c := *q
	c.AcceptedAt = cloneTime(q.AcceptedAt)
	c.RejectedAt = cloneTime(q.RejectedAt)
	c.PaidAt = cloneTime(q.PaidAt)
	if q.Answer != nil {
		a := *q.Answer
		c.Answer = &a
	}
	if q.Dispute != nil {
		d := *q.Dispute
		d.ResolvedAt = cloneTime(q.Dispute.ResolvedAt)
		c.Dispute = &d
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MessageType is the kind of conversation message
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageQuestion MessageType = "question"
)

// Message is one entry in a conversation between two users
type Message struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	ReceiverID     int64       `json:"receiver_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	QuestionID     int64       `json:"question_id,omitempty"`
	Read           bool        `json:"read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ConversationSummary is one row of a user's conversation list
type ConversationSummary struct {
	ConversationID string   `json:"conversation_id"`
	OtherUserID    int64    `json:"other_user_id"`
	LastMessage    *Message `json:"last_message"`
	UnreadCount    int      `json:"unread_count"`
}

// ConversationID returns the canonical id for the conversation between a and b.
func ConversationID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("conv_%d_%d", a, b)
}

// ParseConversationID returns the two participant ids of a conversation id.
func ParseConversationID(id string) (int64, int64, error) {
	var a, b int64
	if _, err := fmt.Sscanf(id, "conv_%d_%d", &a, &b); err != nil {
		return 0, 0, fmt.Errorf("invalid conversation id %q", id)
	}
	if ConversationID(a, b) != id {
		return 0, 0, fmt.Errorf("invalid conversation id %q", id)
	}
	return a, b, nil
}
