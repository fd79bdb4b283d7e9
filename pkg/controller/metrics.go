package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clusterCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logsieve_cluster_count",
		Help: "Most recent total template cluster count sample.",
	})
	volatility = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logsieve_cluster_volatility",
		Help: "Plain volatility of the cluster-count window.",
	})
	weightedVolatility = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logsieve_cluster_weighted_volatility",
		Help: "Time-decay weighted volatility of the cluster-count window.",
	})
	trainSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logsieve_train_signals_total",
		Help: "Retrain trigger events published.",
	})
)

func observe(count int64, vol, weightedVol float64) {
	clusterCount.Set(float64(count))
	volatility.Set(vol)
	weightedVolatility.Set(weightedVol)
}
