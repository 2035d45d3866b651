package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records cart mutation and checkout funnel outcomes.
type CheckoutMetrics struct {
	cartMutations *prometheus.CounterVec
	stageOutcomes *prometheus.CounterVec
	completions   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	mergeReplays  prometheus.Counter
}

// NewCheckoutMetrics registers the funnel metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutation operations by op and outcome.",
	}, []string{"op", "outcome"})
	stageOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_stage_total",
		Help: "Checkout stage submissions by stage and outcome.",
	}, []string{"stage", "outcome"})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_completions_total",
		Help: "Completion reconciler results.",
	}, []string{"outcome"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_stage_duration_seconds",
		Help:    "Duration of checkout stage handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	mergeReplays := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_replays_total",
		Help: "Guest cart merge replays performed at sign-in.",
	})
	reg.MustRegister(cartMutations, stageOutcomes, completions, stageDuration, mergeReplays)
	return &CheckoutMetrics{
		cartMutations: cartMutations,
		stageOutcomes: stageOutcomes,
		completions:   completions,
		stageDuration: stageDuration,
		mergeReplays:  mergeReplays,
	}
}

// IncCartMutation counts one cart mutation attempt.
func (m *CheckoutMetrics) IncCartMutation(op string, success bool) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), outcomeLabel(success)).Inc()
}

// IncStage counts one checkout stage submission.
func (m *CheckoutMetrics) IncStage(stage string, success bool) {
	if m == nil || m.stageOutcomes == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(normalizeLabel(stage), outcomeLabel(success)).Inc()
}

// IncCompletion counts one reconciler run by outcome (landed, duplicate, canceled, failed).
func (m *CheckoutMetrics) IncCompletion(outcome string) {
	if m == nil || m.completions == nil {
		return
	}
	m.completions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveStageDuration records how long one stage submission took.
func (m *CheckoutMetrics) ObserveStageDuration(stage string, duration time.Duration) {
	if m == nil || m.stageDuration == nil {
		return
	}
	m.stageDuration.WithLabelValues(normalizeLabel(stage)).Observe(duration.Seconds())
}

// IncMergeReplay counts one guest-to-bound merge replay.
func (m *CheckoutMetrics) IncMergeReplay() {
	if m == nil || m.mergeReplays == nil {
		return
	}
	m.mergeReplays.Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
