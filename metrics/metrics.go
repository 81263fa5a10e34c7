package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floxi-finance/floxi-keeper/chain"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floxi_keeper_events_total",
			Help: "Total number of contract events handled",
		},
		[]string{"event"},
	)

	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floxi_keeper_transactions_total",
			Help: "Total number of keeper transactions by outcome",
		},
		[]string{"chain", "method", "result"},
	)

	pendingItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "floxi_keeper_pending_items",
			Help: "Number of items held by each pending-work tracker",
		},
		[]string{"tracker"},
	)

	finalityTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floxi_keeper_finality_wait_timeouts_total",
			Help: "Total number of finality or safety waits that gave up",
		},
		[]string{"chain"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floxi_keeper_sweep_runs_total",
			Help: "Total number of sweep ticks by outcome",
		},
		[]string{"result"},
	)

	stalePassengers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "floxi_keeper_stale_passengers",
			Help: "Embarked ferry passengers older than the staleness threshold",
		},
	)

	lastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "floxi_keeper_last_indexed_block",
			Help: "Last block handled by each log subscription",
		},
		[]string{"subscription"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordEvent(event string) {
	eventsTotal.WithLabelValues(event).Inc()
}

// RecordTransaction counts a Transact outcome as success, revert or error.
func RecordTransaction(chainName, method string, err error) {
	result := "success"
	switch {
	case err == nil:
	case chain.IsRevert(err):
		result = "revert"
	default:
		result = "error"
	}
	transactionsTotal.WithLabelValues(chainName, method, result).Inc()
}

func SetPending(tracker string, n int) {
	pendingItems.WithLabelValues(tracker).Set(float64(n))
}

func RecordFinalityTimeout(chainName string) {
	finalityTimeouts.WithLabelValues(chainName).Inc()
}

func RecordSweep(result string) {
	sweepRuns.WithLabelValues(result).Inc()
}

func SetStalePassengers(n int) {
	stalePassengers.Set(float64(n))
}

func SetLastIndexedBlock(subscription string, block uint64) {
	lastIndexedBlock.WithLabelValues(subscription).Set(float64(block))
}
