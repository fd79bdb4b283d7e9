package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var batchesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "logsieve_batches_ingested_total",
	Help: "Inbound batches decoded and enqueued, by stream.",
}, []string{"stream"})
