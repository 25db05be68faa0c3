package client

import (
	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Navigation Metrics
// =============================================================================

// NavMetrics counts navigation activity. Hosts embedding the runtime
// register them on their own registry or leave Metrics nil to disable
// collection; the dev server's metrics registry does not include them.
type NavMetrics struct {
	Navigations     *prometheus.CounterVec
	Fetches         prometheus.Counter
	ClientOnlySkips prometheus.Counter
	Redirects       prometheus.Counter
	PrefetchEvicted prometheus.Counter
	Submissions     prometheus.Counter
}

// NewNavMetrics creates and registers the navigation collectors.
func NewNavMetrics(reg prometheus.Registerer) *NavMetrics {
	m := &NavMetrics{
		Navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "navigations_total",
			Help:      "Navigations by type and terminal outcome.",
		}, []string{"type", "outcome"}),
		Fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "fetches_total",
			Help:      "Server fetches issued by the navigation core.",
		}),
		ClientOnlySkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "client_only_skips_total",
			Help:      "Navigations satisfied from cached loader data without a fetch.",
		}),
		Redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "redirects_total",
			Help:      "Soft redirects followed.",
		}),
		PrefetchEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "prefetch_evicted_total",
			Help:      "Prefetches aborted by an unrelated user navigation.",
		}),
		Submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vorma",
			Subsystem: "nav",
			Name:      "submissions_total",
			Help:      "Form submissions issued.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Navigations, m.Fetches, m.ClientOnlySkips, m.Redirects, m.PrefetchEvicted, m.Submissions)
	}
	return m
}

func (m *NavMetrics) countNavigation(t NavigationType, outcome string) {
	if m == nil {
		return
	}
	m.Navigations.WithLabelValues(t.String(), outcome).Inc()
}

func (m *NavMetrics) countFetch() {
	if m == nil {
		return
	}
	m.Fetches.Inc()
}

func (m *NavMetrics) countSkip() {
	if m == nil {
		return
	}
	m.ClientOnlySkips.Inc()
}

func (m *NavMetrics) countRedirect() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

func (m *NavMetrics) countPrefetchEvicted() {
	if m == nil {
		return
	}
	m.PrefetchEvicted.Inc()
}

func (m *NavMetrics) countSubmission() {
	if m == nil {
		return
	}
	m.Submissions.Inc()
}
