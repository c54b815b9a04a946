package triedb

import "github.com/prometheus/client_golang/prometheus"

// Metrics used by the package.
var (
	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Time spent committing the open tries",
			Name:      "commit_duration_seconds",
			Namespace: "triedb",
		},
	)
	flushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Time spent flushing a diff layer to the store",
			Name:      "flush_duration_seconds",
			Namespace: "triedb",
		},
	)
	flushedNodesCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of trie nodes written by flushes",
			Name:      "flushed_nodes_total",
			Namespace: "triedb",
		},
	)
	cleanHitCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of clean node cache hits",
			Name:      "clean_cache_hits_total",
			Namespace: "triedb",
		},
	)
	cleanMissCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of clean node cache misses",
			Name:      "clean_cache_misses_total",
			Namespace: "triedb",
		},
	)
)

func init() {
	prometheus.MustRegister(
		commitDuration,
		flushDuration,
		flushedNodesCount,
		cleanHitCount,
		cleanMissCount,
	)
}
