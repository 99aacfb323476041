package build

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modulesCheckedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_modules_checked_total",
		Help: "Total number of modules type-checked.",
	})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyrite_cache_hits_total",
		Help: "Total number of modules whose cached result was reused.",
	})

	diagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyrite_diagnostics_total",
		Help: "Total diagnostics produced, by severity.",
	}, []string{"severity"})

	graphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyrite_graph_modules_total",
		Help: "Number of modules in the dependency graph.",
	})

	graphComponents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pyrite_graph_components_total",
		Help: "Number of strongly connected components in the graph.",
	})

	checkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyrite_check_seconds",
		Help:    "Wall time of one full check run.",
		Buckets: prometheus.DefBuckets,
	})

	componentPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pyrite_component_resolution_passes",
		Help:    "Resolution passes needed before a cyclic component stabilized.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})
)
