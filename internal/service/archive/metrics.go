package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "letterarchive_processor_runs_total",
		Help: "Processor runs by final draft status.",
	}, []string{"status"})

	processorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "letterarchive_processor_duration_seconds",
		Help:    "Wall time of one processor run.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})

	processorInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "letterarchive_processor_in_flight",
		Help: "Processor runs currently executing.",
	})

	lettersPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "letterarchive_letters_published_total",
		Help: "Drafts published as letters.",
	})

	letterEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "letterarchive_letter_edits_total",
		Help: "Versioned letter changes by kind.",
	}, []string{"kind"})
)
