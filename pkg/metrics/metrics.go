package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acao_solve_total",
		Help: "Optimizer runs by backend and resulting plan status",
	}, []string{"backend", "status"})

	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "acao_solve_duration_seconds",
		Help:    "Optimizer wall time including relaxation re-solves",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	}, []string{"backend"})

	relaxationSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "acao_relaxation_steps",
		Help:    "Relaxation re-solves needed per optimizer run",
		Buckets: []float64{0, 1, 2, 5, 10, 20},
	})

	solveTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acao_solve_timeouts_total",
		Help: "Optimizer runs stopped by the deadline",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acao_cache_lookups_total",
		Help: "Derived-value cache lookups by cache and result",
	}, []string{"cache", "result"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acao_cache_evictions_total",
		Help: "Derived-value cache entries dropped to stay within capacity",
	}, []string{"cache"})

	scenariosCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acao_scenarios_created_total",
		Help: "Persisted scenarios by label",
	}, []string{"label"})
)

func ObserveSolve(backend, status string, elapsed time.Duration, steps int, timedOut bool) {
	solveTotal.WithLabelValues(backend, status).Inc()
	solveDuration.WithLabelValues(backend).Observe(elapsed.Seconds())
	relaxationSteps.Observe(float64(steps))
	if timedOut {
		solveTimeouts.Inc()
	}
}

func CacheHit(cache string)   { cacheLookups.WithLabelValues(cache, "hit").Inc() }
func CacheMiss(cache string)  { cacheLookups.WithLabelValues(cache, "miss").Inc() }
func CacheEvict(cache string) { cacheEvictions.WithLabelValues(cache).Inc() }

func ScenarioCreated(label string) { scenariosCreated.WithLabelValues(label).Inc() }
