package inbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lettrly_inbox_open_streams",
		Help: "Number of live inbox streams currently open",
	}, []string{"transport"})

	updatesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lettrly_inbox_updates_total",
		Help: "Total number of update frames sent to clients",
	})

	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lettrly_inbox_fetch_errors_total",
		Help: "Snapshot fetches that failed during a poll tick",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lettrly_inbox_fetch_duration_seconds",
		Help:    "Duration of snapshot fetches made by stream loops",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	feedSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lettrly_inbox_feed_skipped_ticks_total",
		Help: "Poll ticks skipped because the change feed reported nothing",
	})
)
