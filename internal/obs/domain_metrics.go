package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CalcCycleTotal counts full calculation cycles by outcome.
	CalcCycleTotal *prometheus.CounterVec
	// CalcCycleLatency records calculation cycle latency in milliseconds.
	CalcCycleLatency *prometheus.HistogramVec
	// CohortPassTotal counts per-cohort recurring passes by outcome.
	CohortPassTotal *prometheus.CounterVec
	// ReentrantShortCircuits counts calculation entries refused by the
	// reentrancy guard.
	ReentrantShortCircuits prometheus.Counter
	// RenewalTaskTotal counts processed renewal tasks by outcome.
	RenewalTaskTotal *prometheus.CounterVec
	// ProjectionCacheTotal counts recurring-cart projection cache lookups.
	ProjectionCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CalcCycleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calc_cycle_total",
			Help:      "Count of calculation cycle outcomes.",
		}, []string{"result"})
		CalcCycleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calc_cycle_duration_ms",
			Help:      "Latency for full calculation cycles in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"result"})
		CohortPassTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cohort_pass_total",
			Help:      "Count of per-cohort recurring passes by outcome.",
		}, []string{"result"})
		ReentrantShortCircuits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calc_reentrant_short_circuits_total",
			Help:      "Number of calculation entries refused by the reentrancy guard.",
		})
		RenewalTaskTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_task_total",
			Help:      "Count of processed renewal tasks by outcome.",
		}, []string{"result"})
		ProjectionCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projection_cache_total",
			Help:      "Count of recurring-cart projection cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, CalcCycleTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CalcCycleTotal = v
			}
		})
		mustRegisterCollector(reg, CalcCycleLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CalcCycleLatency = v
			}
		})
		mustRegisterCollector(reg, CohortPassTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CohortPassTotal = v
			}
		})
		mustRegisterCollector(reg, ReentrantShortCircuits, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReentrantShortCircuits = v
			}
		})
		mustRegisterCollector(reg, RenewalTaskTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RenewalTaskTotal = v
			}
		})
		mustRegisterCollector(reg, ProjectionCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ProjectionCacheTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
