package storage

import (
	"encoding/json"
	"testing"
)

func TestQuestionStatusTransitions(t *testing.T) {
	all := []QuestionStatus{StatusPending, StatusAccepted, StatusRejected, StatusAnswered, StatusCompleted, StatusDisputed, StatusRefunded}
	allowed := map[[2]QuestionStatus]bool{
		{StatusPending, StatusAccepted}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusAccepted, StatusAnswered}:  true,
		{StatusAccepted, StatusCompleted}: true,
		{StatusAnswered, StatusCompleted}: true,
		{StatusCompleted, StatusDisputed}: true,
		{StatusDisputed, StatusCompleted}: true,
		{StatusDisputed, StatusRefunded}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]QuestionStatus{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}

	for _, terminal := range []QuestionStatus{StatusRejected, StatusRefunded} {
		if !terminal.Terminal() {
			t.Errorf("Expected %s to be terminal", terminal)
		}
	}
	if StatusCompleted.Terminal() {
		t.Error("completed can still be disputed")
	}
}

func TestQuestionStatusText(t *testing.T) {
	for status, name := range statusNames {
		parsed, err := ParseQuestionStatus(name)
		if err != nil || parsed != status {
			t.Errorf("ParseQuestionStatus(%q) = %v, %v", name, parsed, err)
		}
	}
	if _, err := ParseQuestionStatus("archived"); err == nil {
		t.Error("Expected error for unknown status")
	}
	if QuestionStatus(0).Valid() {
		t.Error("zero status must be invalid")
	}

	data, err := json.Marshal(struct {
		Status QuestionStatus `json:"status"`
	}{StatusAnswered})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"status":"answered"}` {
		t.Errorf("Unexpected JSON %s", data)
	}
}

func TestConversationID(t *testing.T) {
	if got := ConversationID(9, 3); got != "conv_3_9" {
		t.Errorf("Expected conv_3_9, got %s", got)
	}
	a, b, err := ParseConversationID("conv_3_9")
	if err != nil || a != 3 || b != 9 {
		t.Errorf("ParseConversationID = %d, %d, %v", a, b, err)
	}
	for _, bad := range []string{"conv_9_3", "chat_1_2", "conv_1", ""} {
		if _, _, err := ParseConversationID(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestQuestionClone(t *testing.T) {
	q := &Question{ID: 1, Dispute: &Dispute{Reason: "r"}, AcceptedAt: &t0}
	c := q.Clone()
	c.Dispute.Reason = "changed"
	later := t0.Add(1)
	*c.AcceptedAt = later
	if q.Dispute.Reason != "r" || !q.AcceptedAt.Equal(t0) {
		t.Error("Clone must not share pointers with the original")
	}
}

func TestResolutionValid(t *testing.T) {
	for _, r := range []Resolution{ResolutionRefund, ResolutionPay, ResolutionPartial} {
		if !r.Valid() {
			t.Errorf("Expected %s to be valid", r)
		}
	}
	if Resolution("split").Valid() {
		t.Error("split is not a resolution")
	}
}
