// Package metrics defines the Prometheus collectors of the service. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "card_service"

// Metrics holds every collector the service records to
type Metrics struct {
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	EMIsCreated    prometheus.Counter
	EMIPayments    *prometheus.CounterVec
	EMIPaidAmount  prometheus.Counter
	EMITransitions *prometheus.CounterVec
	Reminders      *prometheus.CounterVec
	BillPayments   *prometheus.CounterVec
	BillPaidAmount prometheus.Counter
	BillReminders  *prometheus.CounterVec
	CardCharges    *prometheus.CounterVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		EMIsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emis_created_total",
			Help:      "Installment plans created.",
		}),
		EMIPayments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emi_payments_total",
			Help:      "Installment payments applied, by kind.",
		}, []string{"kind"}),
		EMIPaidAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emi_paid_amount_total",
			Help:      "Sum of installment payments applied.",
		}),
		EMITransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emi_status_transitions_total",
			Help:      "Installment plans entering a terminal status.",
		}, []string{"status"}),
		Reminders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emi_reminders_total",
			Help:      "EMI reminders sent, by priority.",
		}, []string{"priority"}),
		BillPayments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_payments_total",
			Help:      "Bill payments applied, by kind.",
		}, []string{"kind"}),
		BillPaidAmount: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_paid_amount_total",
			Help:      "Sum of bill payments applied.",
		}),
		BillReminders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_reminders_total",
			Help:      "Bill reminders sent, by priority.",
		}, []string{"priority"}),
		CardCharges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_charges_total",
			Help:      "Card charges by outcome.",
		}, []string{"outcome"}),
	}
}

// EMICreated counts a new plan
func (m *Metrics) EMICreated() {
	if m == nil {
		return
	}
	m.EMIsCreated.Inc()
}

// EMIPaid counts one applied payment
func (m *Metrics) EMIPaid(kind string, amount float64) {
	if m == nil {
		return
	}
	m.EMIPayments.WithLabelValues(kind).Inc()
	m.EMIPaidAmount.Add(amount)
}

// EMITransitioned counts a plan entering status
func (m *Metrics) EMITransitioned(status string) {
	if m == nil {
		return
	}
	m.EMITransitions.WithLabelValues(status).Inc()
}

// ReminderSent counts a reminder of the given priority
func (m *Metrics) ReminderSent(priority string) {
	if m == nil {
		return
	}
	m.Reminders.WithLabelValues(priority).Inc()
}

// BillPaid counts one bill payment
func (m *Metrics) BillPaid(kind string, amount float64) {
	if m == nil {
		return
	}
	m.BillPayments.WithLabelValues(kind).Inc()
	m.BillPaidAmount.Add(amount)
}

// BillReminderSent counts a bill reminder of the given priority
func (m *Metrics) BillReminderSent(priority string) {
	if m == nil {
		return
	}
	m.BillReminders.WithLabelValues(priority).Inc()
}

// CardCharged counts a charge attempt by outcome
func (m *Metrics) CardCharged(outcome string) {
	if m == nil {
		return
	}
	m.CardCharges.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, code).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}
