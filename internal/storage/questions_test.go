package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"paidqa/internal/errorz"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createQuestion(t *testing.T, s *Store, askerID, answererID int64, createdAt time.Time) *Question {
	t.Helper()
	q := &Question{AskerID: askerID, AnswererID: answererID, Content: "What is the best route?", Price: 3000, CreatedAt: createdAt}
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		_, err := tx.CreateQuestion(context.Background(), q)
		return err
	})
	if err != nil {
		t.Fatalf("CreateQuestion failed: %v", err)
	}
	return q
}

func accept(at time.Time) func(q *Question) error {
	return func(q *Question) error {
		q.Status = StatusAccepted
		q.AcceptedAt = &at
		q.UpdatedAt = at
		return nil
	}
}

func TestCreateAndGetQuestion(t *testing.T) {
	s := setupTestDB(t)
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)

	created := createQuestion(t, s, asker.ID, answerer.ID, t0)
	if created.ID == 0 {
		t.Fatal("Expected non-zero question ID")
	}

	q, err := s.GetQuestion(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if q.Status != StatusPending {
		t.Errorf("Expected pending, got %s", q.Status)
	}
	if q.Price != 3000 {
		t.Errorf("Expected price 3000, got %d", q.Price)
	}
	if !q.CreatedAt.Equal(t0) {
		t.Errorf("Expected created_at %v, got %v", t0, q.CreatedAt)
	}
	if q.ConversationID != ConversationID(asker.ID, answerer.ID) {
		t.Errorf("Unexpected conversation id %s", q.ConversationID)
	}
	if q.AcceptedAt != nil || q.Answer != nil || q.Dispute != nil {
		t.Errorf("Expected optional fields to be unset, got %+v", q)
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	s := setupTestDB(t)
	user := mustCreateUser(t, s, 1, testBonus)
	other := mustCreateUser(t, s, 2, testBonus)

	tests := []struct {
		name string
		q    *Question
	}{
		{"self question", &Question{AskerID: user.ID, AnswererID: user.ID, Content: "x", Price: 1}},
		{"zero price", &Question{AskerID: user.ID, AnswererID: other.ID, Content: "x", Price: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.WithTx(context.Background(), func(tx *Tx) error {
				_, err := tx.CreateQuestion(context.Background(), tt.q)
				return err
			})
			if !errors.Is(err, errorz.ErrValidation) {
				t.Fatalf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestGetQuestionNotFound(t *testing.T) {
	s := setupTestDB(t)
	_, err := s.GetQuestion(context.Background(), 404)
	if !errors.Is(err, errorz.ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
}

func TestTransitionQuestion(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)
	q := createQuestion(t, s, asker.ID, answerer.ID, t0)

	acceptedAt := t0.Add(time.Hour)
	updated, err := s.transitionQuestion(ctx, q.ID, StatusPending, accept(acceptedAt))
	if err != nil {
		t.Fatalf("TransitionQuestion failed: %v", err)
	}
	if updated.Status != StatusAccepted {
		t.Errorf("Expected accepted, got %s", updated.Status)
	}

	stored, _ := s.GetQuestion(ctx, q.ID)
	if stored.AcceptedAt == nil || !stored.AcceptedAt.Equal(acceptedAt) {
		t.Errorf("Expected accepted_at %v, got %v", acceptedAt, stored.AcceptedAt)
	}

	// Stale expectation loses the compare-and-swap.
	_, err = s.transitionQuestion(ctx, q.ID, StatusPending, func(q *Question) error {
		q.Status = StatusRejected
		return nil
	})
	if !errors.Is(err, errorz.ErrConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}
}

func TestTransitionQuestionRejectsIllegalEdges(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)
	q := createQuestion(t, s, asker.ID, answerer.ID, t0)

	tests := []struct {
		name   string
		mutate func(q *Question) error
	}{
		{"pending to completed", func(q *Question) error { q.Status = StatusCompleted; return nil }},
		{"pending to disputed", func(q *Question) error { q.Status = StatusDisputed; return nil }},
		{"price change", func(q *Question) error { q.Status = StatusAccepted; q.Price = 1; return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.transitionQuestion(ctx, q.ID, StatusPending, tt.mutate)
			if !errors.Is(err, errorz.ErrConflict) {
				t.Fatalf("Expected conflict, got %v", err)
			}
		})
	}

	stored, _ := s.GetQuestion(ctx, q.ID)
	if stored.Status != StatusPending {
		t.Errorf("Expected question to stay pending, got %s", stored.Status)
	}
}

func TestTransitionQuestionSetOnceFields(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)
	q := createQuestion(t, s, asker.ID, answerer.ID, t0)

	if _, err := s.transitionQuestion(ctx, q.ID, StatusPending, accept(t0.Add(time.Hour))); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	_, err := s.transitionQuestion(ctx, q.ID, StatusAccepted, func(q *Question) error {
		later := t0.Add(2 * time.Hour)
		q.Status = StatusAnswered
		q.AcceptedAt = &later
		q.Answer = &Answer{Content: "Take the ring road", AnsweredAt: later}
		return nil
	})
	if !errors.Is(err, errorz.ErrConflict) {
		t.Fatalf("Expected conflict when overwriting accepted_at, got %v", err)
	}
}

func TestTransitionQuestionMutateError(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)
	q := createQuestion(t, s, asker.ID, answerer.ID, t0)

	_, err := s.transitionQuestion(ctx, q.ID, StatusPending, func(q *Question) error {
		return errorz.ErrForbidden
	})
	if !errors.Is(err, errorz.ErrForbidden) {
		t.Fatalf("Expected mutate error to propagate, got %v", err)
	}
}

func TestDisputeRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)
	q := createQuestion(t, s, asker.ID, answerer.ID, t0)

	steps := []struct {
		from   QuestionStatus
		mutate func(q *Question) error
	}{
		{StatusPending, accept(t0.Add(time.Hour))},
		{StatusAccepted, func(q *Question) error {
			paid := t0.Add(26 * time.Hour)
			q.Status = StatusCompleted
			q.PaidAt = &paid
			return nil
		}},
		{StatusCompleted, func(q *Question) error {
			q.Status = StatusDisputed
			q.Dispute = &Dispute{Reason: "wrong answer", CreatedAt: t0.Add(27 * time.Hour)}
			return nil
		}},
		{StatusDisputed, func(q *Question) error {
			resolved := t0.Add(30 * time.Hour)
			q.Status = StatusRefunded
			q.Dispute.ResolvedAt = &resolved
			q.Dispute.ResolvedBy = "op-1"
			q.Dispute.Resolution = ResolutionRefund
			return nil
		}},
	}
	for _, step := range steps {
		if _, err := s.transitionQuestion(ctx, q.ID, step.from, step.mutate); err != nil {
			t.Fatalf("transition from %s failed: %v", step.from, err)
		}
	}

	stored, err := s.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion failed: %v", err)
	}
	if stored.Status != StatusRefunded {
		t.Errorf("Expected refunded, got %s", stored.Status)
	}
	if stored.Dispute == nil || stored.Dispute.Reason != "wrong answer" || stored.Dispute.Resolution != ResolutionRefund || stored.Dispute.ResolvedBy != "op-1" {
		t.Errorf("Unexpected dispute %+v", stored.Dispute)
	}
	if stored.PaidAt == nil || !stored.PaidAt.Equal(t0.Add(26*time.Hour)) {
		t.Errorf("Unexpected paid_at %v", stored.PaidAt)
	}
}

func TestListSettlementDue(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	asker := mustCreateUser(t, s, 1, testBonus)
	answerer := mustCreateUser(t, s, 2, testBonus)

	old := createQuestion(t, s, asker.ID, answerer.ID, t0)
	recent := createQuestion(t, s, asker.ID, answerer.ID, t0)
	pending := createQuestion(t, s, asker.ID, answerer.ID, t0)
	answered := createQuestion(t, s, asker.ID, answerer.ID, t0)

	s.transitionQuestion(ctx, old.ID, StatusPending, accept(t0.Add(time.Hour)))
	s.transitionQuestion(ctx, recent.ID, StatusPending, accept(t0.Add(20*time.Hour)))
	s.transitionQuestion(ctx, answered.ID, StatusPending, accept(t0.Add(2*time.Hour)))
	s.transitionQuestion(ctx, answered.ID, StatusAccepted, func(q *Question) error {
		q.Status = StatusAnswered
		q.Answer = &Answer{Content: "yes", AnsweredAt: t0.Add(3 * time.Hour)}
		return nil
	})

	due, err := s.ListSettlementDue(ctx, t0.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("ListSettlementDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("Expected 2 due questions, got %d", len(due))
	}
	if due[0].ID != old.ID || due[1].ID != answered.ID {
		t.Errorf("Unexpected due order: %d, %d", due[0].ID, due[1].ID)
	}
	for _, q := range due {
		if q.ID == pending.ID || q.ID == recent.ID {
			t.Errorf("Question %d should not be due", q.ID)
		}
	}
}

func TestListQuestions(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	a := mustCreateUser(t, s, 1, testBonus)
	b := mustCreateUser(t, s, 2, testBonus)
	c := mustCreateUser(t, s, 3, testBonus)

	first := createQuestion(t, s, a.ID, b.ID, t0)
	second := createQuestion(t, s, b.ID, a.ID, t0.Add(time.Minute))
	createQuestion(t, s, a.ID, c.ID, t0.Add(2*time.Minute))

	asked, _ := s.ListQuestionsByAsker(ctx, a.ID)
	if len(asked) != 2 {
		t.Errorf("Expected 2 asked questions, got %d", len(asked))
	}
	received, _ := s.ListQuestionsByAnswerer(ctx, a.ID)
	if len(received) != 1 || received[0].ID != second.ID {
		t.Errorf("Expected question %d received, got %+v", second.ID, received)
	}
	between, _ := s.ListQuestionsBetween(ctx, b.ID, a.ID)
	if len(between) != 2 || between[0].ID != second.ID || between[1].ID != first.ID {
		t.Errorf("Expected both directions newest first, got %+v", between)
	}
	pending, _ := s.ListQuestionsByStatus(ctx, StatusPending)
	if len(pending) != 3 {
		t.Errorf("Expected 3 pending questions, got %d", len(pending))
	}
	none, _ := s.ListQuestionsByStatus(ctx)
	if len(none) != 0 {
		t.Errorf("Expected empty list without statuses, got %d", len(none))
	}
}
