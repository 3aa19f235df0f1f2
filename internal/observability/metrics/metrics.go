package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "solarbill"

// MessagingMetrics exposes counters/histograms for chat messaging flows.
type MessagingMetrics struct {
	inboundTotal   *prometheus.CounterVec
	outboundTotal  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Total inbound chat events",
		}, []string{"kind", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound chat sends",
		}, []string{"status", "suppressed"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "inbound_latency_seconds",
			Help:      "Latency of inbound event processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.webhookLatency)
	return m
}

func (m *MessagingMetrics) ObserveInbound(kind, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string, suppressed bool) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status, boolLabel(suppressed)).Inc()
}

func (m *MessagingMetrics) ObserveInboundLatency(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(kind).Observe(seconds)
}

// LeadMetrics tracks bill extraction and qualification outcomes.
type LeadMetrics struct {
	confidence    prometheus.Histogram
	qualification *prometheus.CounterVec
	fieldsFound   *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "confidence_score",
			Help:      "Confidence score of bill extractions",
			Buckets:   []float64{0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875, 1},
		}),
		qualification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "qualification",
			Name:      "results_total",
			Help:      "Qualification decisions by outcome",
		}, []string{"qualified"}),
		fieldsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extraction",
			Name:      "fields_found_total",
			Help:      "Extracted bill fields by name",
		}, []string{"field"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.confidence, m.qualification, m.fieldsFound)
	return m
}

func (m *LeadMetrics) ObserveExtraction(confidence float64, fields []string) {
	if m == nil {
		return
	}
	m.confidence.Observe(confidence)
	for _, f := range fields {
		m.fieldsFound.WithLabelValues(f).Inc()
	}
}

func (m *LeadMetrics) ObserveQualification(qualified bool) {
	if m == nil {
		return
	}
	m.qualification.WithLabelValues(boolLabel(qualified)).Inc()
}

// RaceMetrics tracks reply/timeout races and the reminders they trigger.
type RaceMetrics struct {
	armed     prometheus.Counter
	resolved  *prometheus.CounterVec
	conflicts prometheus.Counter
	reminders *prometheus.CounterVec
	deadline  prometheus.Gauge
}

func NewRaceMetrics(reg prometheus.Registerer) *RaceMetrics {
	m := &RaceMetrics{
		armed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "armed_total",
			Help:      "Reply races armed",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "resolved_total",
			Help:      "Reply races resolved by outcome",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "conflicts_total",
			Help:      "Resolution attempts on already resolved races",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "reminders_total",
			Help:      "Reminder decisions after a timeout",
		}, []string{"status"}),
		deadline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "race",
			Name:      "default_deadline_seconds",
			Help:      "Configured reply deadline",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.armed, m.resolved, m.conflicts, m.reminders, m.deadline)
	return m
}

func (m *RaceMetrics) ObserveArmed() {
	if m == nil {
		return
	}
	m.armed.Inc()
}

func (m *RaceMetrics) ObserveResolved(outcome string) {
	if m == nil {
		return
	}
	m.resolved.WithLabelValues(outcome).Inc()
}

func (m *RaceMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// ObserveReminder records "sent", "suppressed" (already processed or completed) or "failed".
func (m *RaceMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(status).Inc()
}

func (m *RaceMetrics) SetDefaultDeadline(seconds float64) {
	if m == nil {
		return
	}
	m.deadline.Set(seconds)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
