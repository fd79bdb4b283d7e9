package scoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_records_scored_total",
		Help: "Log records classified and scored.",
	})
	anomaliesFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_anomalies_flagged_total",
		Help: "Records flagged anomalous by the support/keyword heuristic.",
	})
	changeCounts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "logsieve_batch_change_count",
		Help: "Per-batch classification change counts from the last processed batch.",
	}, []string{"change"})
)
