package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"paidqa/internal/errorz"
	"paidqa/internal/money"
)

const questionColumns = `
	id, asker_id, answerer_id, content, price, status, conversation_id,
	answer_content, answered_at,
	dispute_reason, disputed_at, dispute_resolved_at, dispute_resolved_by, dispute_resolution,
	created_at, accepted_at, rejected_at, paid_at, updated_at`

func scanQuestion(row interface{ Scan(...any) error }) (*Question, error) {
	var (
		q                                  Question
		status                             string
		price                              int64
		answerContent, disputeReason       sql.NullString
		resolvedBy, resolution             sql.NullString
		answeredAt, disputedAt, resolvedAt sql.NullInt64
		createdAt, updatedAt               int64
		acceptedAt, rejectedAt, paidAt     sql.NullInt64
	)
	err := row.Scan(
		&q.ID, &q.AskerID, &q.AnswererID, &q.Content, &price, &status, &q.ConversationID,
		&answerContent, &answeredAt,
		&disputeReason, &disputedAt, &resolvedAt, &resolvedBy, &resolution,
		&createdAt, &acceptedAt, &rejectedAt, &paidAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.Price = money.FromMinor(price)
	if q.Status, err = ParseQuestionStatus(status); err != nil {
		return nil, err
	}
	q.CreatedAt = time.Unix(0, createdAt).UTC()
	q.UpdatedAt = time.Unix(0, updatedAt).UTC()
	q.AcceptedAt = fromNanos(acceptedAt)
	q.RejectedAt = fromNanos(rejectedAt)
	q.PaidAt = fromNanos(paidAt)

	if answerContent.Valid && answeredAt.Valid {
		q.Answer = &Answer{Content: answerContent.String, AnsweredAt: *fromNanos(answeredAt)}
	}
	if disputeReason.Valid && disputedAt.Valid {
		q.Dispute = &Dispute{
			Reason:     disputeReason.String,
			CreatedAt:  *fromNanos(disputedAt),
			ResolvedAt: fromNanos(resolvedAt),
			ResolvedBy: resolvedBy.String,
			Resolution: Resolution(resolution.String),
		}
	}
	return &q, nil
}

// CreateQuestion inserts q as a pending question and sets its ID.
func (t *Tx) CreateQuestion(ctx context.Context, q *Question) (int64, error) {
	if q.AskerID == q.AnswererID {
		return 0, fmt.Errorf("%w: cannot ask yourself", errorz.ErrValidation)
	}
	if !q.Price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive", errorz.ErrValidation)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	q.Status = StatusPending
	q.UpdatedAt = q.CreatedAt
	if q.ConversationID == "" {
		q.ConversationID = ConversationID(q.AskerID, q.AnswererID)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO questions (asker_id, answerer_id, content, price, status, conversation_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, q.AskerID, q.AnswererID, q.Content, q.Price.Minor(), q.Status.String(), q.ConversationID,
		q.CreatedAt.UnixNano(), q.UpdatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to insert question: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	q.ID = id
	return id, nil
}

// GetQuestion loads a question by id.
func (s *Store) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	return getQuestion(ctx, s.db, id)
}

// GetQuestion loads a question inside the transaction.
func (t *Tx) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	return getQuestion(ctx, t.tx, id)
}

func getQuestion(ctx context.Context, q querier, id int64) (*Question, error) {
	question, err := scanQuestion(q.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: question %d", errorz.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get question %d: %w", id, err)
	}
	return question, nil
}

// TransitionQuestion applies mutate to the question only if its status is
// still expected, as a compare-and-swap on the status column. A lost race
// or an illegal edge yields errorz.ErrConflict and nothing is written.
func (t *Tx) TransitionQuestion(ctx context.Context, id int64, expected QuestionStatus, mutate func(q *Question) error) (*Question, error) {
	current, err := getQuestion(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, fmt.Errorf("%w: question %d is %s, expected %s", errorz.ErrConflict, id, current.Status, expected)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := checkTransition(current, next); err != nil {
		return nil, err
	}
	if !next.UpdatedAt.After(current.UpdatedAt) {
		next.UpdatedAt = time.Now().UTC()
	}

	var answerContent, resolvedBy, resolution any
	var answeredAt, disputeReason, disputedAt, resolvedAt any
	if next.Answer != nil {
		answerContent = next.Answer.Content
		answeredAt = next.Answer.AnsweredAt.UnixNano()
	}
	if next.Dispute != nil {
		disputeReason = next.Dispute.Reason
		disputedAt = next.Dispute.CreatedAt.UnixNano()
		resolvedAt = nanos(next.Dispute.ResolvedAt)
		if next.Dispute.ResolvedBy != "" {
			resolvedBy = next.Dispute.ResolvedBy
		}
		if next.Dispute.Resolution != "" {
			resolution = string(next.Dispute.Resolution)
		}
	}

	result, err := t.tx.ExecContext(ctx, `
		UPDATE questions
		SET status = ?, answer_content = ?, answered_at = ?,
			dispute_reason = ?, disputed_at = ?, dispute_resolved_at = ?, dispute_resolved_by = ?, dispute_resolution = ?,
			accepted_at = ?, rejected_at = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, next.Status.String(), answerContent, answeredAt,
		disputeReason, disputedAt, resolvedAt, resolvedBy, resolution,
		nanos(next.AcceptedAt), nanos(next.RejectedAt), nanos(next.PaidAt), next.UpdatedAt.UnixNano(),
		id, expected.String())
	if err != nil {
		return nil, fmt.Errorf("failed to update question %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected != 1 {
		return nil, fmt.Errorf("%w: question %d changed concurrently", errorz.ErrConflict, id)
	}
	return next, nil
}

// checkTransition enforces the lifecycle edges and the set-once fields.
func checkTransition(current, next *Question) error {
	if !current.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: cannot move question %d from %s to %s", errorz.ErrConflict, current.ID, current.Status, next.Status)
	}
	if next.AskerID != current.AskerID || next.AnswererID != current.AnswererID ||
		next.Content != current.Content || next.Price != current.Price ||
		next.ConversationID != current.ConversationID || !next.CreatedAt.Equal(current.CreatedAt) {
		return fmt.Errorf("%w: question %d immutable fields changed", errorz.ErrConflict, current.ID)
	}
	for _, field := range []struct {
		name      string
		old, next *time.Time
	}{
		{"accepted_at", current.AcceptedAt, next.AcceptedAt},
		{"rejected_at", current.RejectedAt, next.RejectedAt},
		{"paid_at", current.PaidAt, next.PaidAt},
	} {
		if field.old != nil && (field.next == nil || !field.old.Equal(*field.next)) {
			return fmt.Errorf("%w: question %d %s already set", errorz.ErrConflict, current.ID, field.name)
		}
	}
	if current.Answer != nil && (next.Answer == nil || *next.Answer != *current.Answer) {
		return fmt.Errorf("%w: question %d already answered", errorz.ErrConflict, current.ID)
	}
	if current.Dispute != nil {
		if next.Dispute == nil || next.Dispute.Reason != current.Dispute.Reason || !next.Dispute.CreatedAt.Equal(current.Dispute.CreatedAt) {
			return fmt.Errorf("%w: question %d dispute already recorded", errorz.ErrConflict, current.ID)
		}
		if current.Dispute.ResolvedAt != nil && (next.Dispute.ResolvedAt == nil || !current.Dispute.ResolvedAt.Equal(*next.Dispute.ResolvedAt)) {
			return fmt.Errorf("%w: question %d dispute already resolved", errorz.ErrConflict, current.ID)
		}
	}
	return nil
}

func (s *Store) listQuestions(ctx context.Context, where string, args ...any) ([]*Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	questions := []*Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListQuestionsByAsker returns the questions the user asked, newest first.
func (s *Store) ListQuestionsByAsker(ctx context.Context, askerID int64) ([]*Question, error) {
	return s.listQuestions(ctx, `asker_id = ? ORDER BY created_at DESC, id DESC`, askerID)
}

// ListQuestionsByAnswerer returns the questions the user received, newest first.
func (s *Store) ListQuestionsByAnswerer(ctx context.Context, answererID int64) ([]*Question, error) {
	return s.listQuestions(ctx, `answerer_id = ? ORDER BY created_at DESC, id DESC`, answererID)
}

// ListQuestionsBetween returns questions exchanged between two users in either direction.
func (s *Store) ListQuestionsBetween(ctx context.Context, userA, userB int64) ([]*Question, error) {
	return s.ListQuestionsByConversation(ctx, ConversationID(userA, userB))
}

// ListQuestionsByConversation returns a conversation's questions, newest first.
func (s *Store) ListQuestionsByConversation(ctx context.Context, conversationID string) ([]*Question, error) {
	return s.listQuestions(ctx, `conversation_id = ? ORDER BY created_at DESC, id DESC`, conversationID)
}

// ListQuestionsByStatus returns questions in any of the given statuses, oldest first.
func (s *Store) ListQuestionsByStatus(ctx context.Context, statuses ...QuestionStatus) ([]*Question, error) {
	if len(statuses) == 0 {
		return []*Question{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status.String()
	}
	return s.listQuestions(ctx, `status IN (`+placeholders+`) ORDER BY updated_at ASC, id ASC`, args...)
}

// ListSettlementDue returns accepted or answered questions that are unpaid
// and were accepted at or before cutoff, oldest acceptance first.
func (s *Store) ListSettlementDue(ctx context.Context, cutoff time.Time) ([]*Question, error) {
	return s.listQuestions(ctx, `
		status IN (?, ?)
		AND paid_at IS NULL
		AND accepted_at IS NOT NULL
		AND accepted_at <= ?
		ORDER BY accepted_at ASC, id ASC`,
		StatusAccepted.String(), StatusAnswered.String(), cutoff.UnixNano())
}
