package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EscrowMetrics tracks question lifecycle, ledger and delivery activity.
type EscrowMetrics struct {
	transitions      *prometheus.CounterVec
	ledgerVolume     *prometheus.CounterVec
	settlementTicks  *prometheus.CounterVec
	settled          prometheus.Counter
	settleFailures   prometheus.Counter
	notifications    *prometheus.CounterVec
	notificationDrop prometheus.Counter
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow returns the process-wide collectors, registering them on first use.
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paidqa_question_transitions_total",
				Help: "Question lifecycle events by event and outcome.",
			}, []string{"event", "outcome"}),
			ledgerVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paidqa_ledger_minor_units_total",
				Help: "Minor units moved through the ledger by source type.",
			}, []string{"source"}),
			settlementTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paidqa_settlement_ticks_total",
				Help: "Settlement worker ticks by result.",
			}, []string{"result"}),
			settled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paidqa_settlement_settled_total",
				Help: "Questions paid out by the settlement worker.",
			}),
			settleFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paidqa_settlement_failures_total",
				Help: "Questions the settlement worker failed to pay out.",
			}),
			notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "paidqa_notifications_total",
				Help: "Notification deliveries by sink and outcome.",
			}, []string{"sink", "outcome"}),
			notificationDrop: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "paidqa_notifications_dropped_total",
				Help: "Events dropped because the notification queue was full.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.transitions,
			escrowRegistry.ledgerVolume,
			escrowRegistry.settlementTicks,
			escrowRegistry.settled,
			escrowRegistry.settleFailures,
			escrowRegistry.notifications,
			escrowRegistry.notificationDrop,
		)
	})
	return escrowRegistry
}

// ObserveTransition counts a lifecycle event; outcome is "ok" or an error kind.
func (m *EscrowMetrics) ObserveTransition(event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, outcome).Inc()
}

// ObserveLedger adds the absolute amount moved for a source type.
func (m *EscrowMetrics) ObserveLedger(source string, minor int64) {
	if m == nil || minor == 0 {
		return
	}
	if minor < 0 {
		minor = -minor
	}
	m.ledgerVolume.WithLabelValues(source).Add(float64(minor))
}

func (m *EscrowMetrics) ObserveSettlementTick(result string) {
	if m == nil {
		return
	}
	m.settlementTicks.WithLabelValues(result).Inc()
}

func (m *EscrowMetrics) ObserveSettled() {
	if m == nil {
		return
	}
	m.settled.Inc()
}

func (m *EscrowMetrics) ObserveSettleFailure() {
	if m == nil {
		return
	}
	m.settleFailures.Inc()
}

func (m *EscrowMetrics) ObserveNotification(sink, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(sink, outcome).Inc()
}

func (m *EscrowMetrics) ObserveNotificationDropped() {
	if m == nil {
		return
	}
	m.notificationDrop.Inc()
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
