package chat

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/creastat/chatcontext"
)

// Metrics records how prompts were budgeted. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	PromptTokens    prometheus.Histogram
	DroppedMessages prometheus.Counter
	Truncations     prometheus.Counter
	Overflows       prometheus.Counter
	Persists        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PromptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatcontext_prompt_tokens",
			Help:    "Estimated tokens of budgeted prompts.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 12),
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcontext_dropped_messages_total",
			Help: "Conversation messages left out of prompts to fit the budget.",
		}),
		Truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcontext_truncations_total",
			Help: "Prompts in which one message was truncated.",
		}),
		Overflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcontext_system_overflows_total",
			Help: "Prompts whose system messages alone exceeded the budget.",
		}),
		Persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcontext_persist_total",
			Help: "Conversation turn persistence attempts by outcome.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(m.PromptTokens, m.DroppedMessages, m.Truncations, m.Overflows, m.Persists)
	}
	return m
}

// ObserveBudget records the outcome of one budgeting pass.
func (m *Metrics) ObserveBudget(res chatcontext.Result) {
	if m == nil {
		return
	}
	if m.PromptTokens != nil {
		m.PromptTokens.Observe(float64(res.Tokens))
	}
	if m.DroppedMessages != nil {
		m.DroppedMessages.Add(float64(res.Dropped))
	}
	if res.Truncated && m.Truncations != nil {
		m.Truncations.Inc()
	}
	if res.Overflow && m.Overflows != nil {
		m.Overflows.Inc()
	}
}

// IncPersist counts a persistence outcome.
func (m *Metrics) IncPersist(status string) {
	if m == nil || m.Persists == nil {
		return
	}
	m.Persists.WithLabelValues(status).Inc()
}
