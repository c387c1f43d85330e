package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"paidqa/internal/logger"
	"paidqa/internal/metrics"
	"paidqa/internal/money"
	"paidqa/internal/storage"
)

// EventType names a question lifecycle notification
type EventType string

const (
	EventQuestionCreated  EventType = "question.created"
	EventQuestionAccepted EventType = "question.accepted"
	EventQuestionRejected EventType = "question.rejected"
	EventQuestionAnswered EventType = "question.answered"
	EventQuestionPaid     EventType = "question.paid"
	EventQuestionDisputed EventType = "question.disputed"
	EventQuestionResolved EventType = "question.resolved"
)

// Event is published after a transition commits
type Event struct {
	ID             string             `json:"id"`
	Type           EventType          `json:"type"`
	QuestionID     int64              `json:"question_id"`
	AskerID        int64              `json:"asker_id"`
	AnswererID     int64              `json:"answerer_id"`
	ConversationID string             `json:"conversation_id"`
	Status         string             `json:"status"`
	Amount         money.Amount       `json:"amount"`
	Resolution     storage.Resolution `json:"resolution,omitempty"`
	Excerpt        string             `json:"excerpt,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func newEvent(typ EventType, q *storage.Question, amount money.Amount, at time.Time) Event {
	return Event{
		Type:           typ,
		QuestionID:     q.ID,
		AskerID:        q.AskerID,
		AnswererID:     q.AnswererID,
		ConversationID: q.ConversationID,
		Status:         q.Status.String(),
		Amount:         amount,
		Excerpt:        truncateString(q.Content, excerptLength),
		OccurredAt:     at,
	}
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(evt Event)
}

// Sink delivers events to one external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

const (
	excerptLength          = 80
	defaultEmitterCapacity = 256
	defaultDeliveryTimeout = 5 * time.Second
)

// Emitter fans events out to sinks from a bounded in-memory queue.
// When the queue is full new events are dropped and counted.
type Emitter struct {
	queue   chan Event
	sinks   []Sink
	timeout time.Duration
	metrics *metrics.EscrowMetrics
}

// NewEmitter creates an emitter with the given queue capacity.
func NewEmitter(capacity int, sinks ...Sink) *Emitter {
	if capacity <= 0 {
		capacity = defaultEmitterCapacity
	}
	return &Emitter{
		queue:   make(chan Event, capacity),
		sinks:   sinks,
		timeout: defaultDeliveryTimeout,
		metrics: metrics.Escrow(),
	}
}

// AddSink registers another sink. Call before Run.
func (e *Emitter) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// Notify enqueues evt, assigning an id and timestamp when missing.
func (e *Emitter) Notify(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	select {
	case e.queue <- evt:
	default:
		e.metrics.ObserveNotificationDropped()
		logger.Error(0, "notification_dropped", fmt.Sprintf("event=%s question_id=%d", evt.Type, evt.QuestionID))
	}
}

// Pending returns the number of queued events.
func (e *Emitter) Pending() int {
	return len(e.queue)
}

// Run delivers queued events until ctx is cancelled.
func (e *Emitter) Run(ctx context.Context) {
	logger.Debug(0, "emitter_started", fmt.Sprintf("sinks=%d capacity=%d", len(e.sinks), cap(e.queue)))
	for {
		select {
		case <-ctx.Done():
			logger.Debug(0, "emitter_stopped", fmt.Sprintf("pending=%d", len(e.queue)))
			return
		case evt := <-e.queue:
			e.dispatch(ctx, evt)
		}
	}
}

func (e *Emitter) dispatch(ctx context.Context, evt Event) {
	for _, sink := range e.sinks {
		e.deliver(ctx, sink, evt)
	}
}

func (e *Emitter) deliver(ctx context.Context, sink Sink, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.ObserveNotification(sink.Name(), "panic")
			logger.Error(0, "notification_panic", fmt.Sprintf("sink=%s event=%s panic=%v", sink.Name(), evt.Type, r))
		}
	}()

	deliverCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := sink.Deliver(deliverCtx, evt); err != nil {
		e.metrics.ObserveNotification(sink.Name(), "error")
		logger.Error(0, "notification_error", fmt.Sprintf("sink=%s event=%s question_id=%d error=%v", sink.Name(), evt.Type, evt.QuestionID, err))
		return
	}
	e.metrics.ObserveNotification(sink.Name(), "ok")
}

// nopNotifier discards events
type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
