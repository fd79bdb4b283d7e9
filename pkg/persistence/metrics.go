package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_records_persisted_total",
		Help: "Scored records whose template fields were bulk-applied.",
	})
	anomaliesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_anomalies_persisted_total",
		Help: "Anomalous records whose counter script was bulk-applied.",
	})
	retriesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_persistence_retries_total",
		Help: "Failed batches re-enqueued for another persistence attempt.",
	})
	batchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_persistence_dropped_total",
		Help: "Failed batches dropped because the persistence queue was full.",
	})
)
