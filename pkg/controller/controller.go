// Package controller implements the retrain signal control loop: it samples
// the total cluster count on a fixed cadence, tracks weighted volatility of
// the series, and emits retrain-trigger events once the clustering model has
// settled (or has clearly outgrown its last training).
package controller

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/window"
)

const (
	// minSamples is how many cluster-count samples must exist before the
	// decision rules run.
	minSamples = 4
	// baseSamples is how many of the most recent samples form the
	// normalization base for both volatility measures.
	baseSamples = 10

	// volAwait: weighted volatility at or above this marks the model as too
	// unstable to retrain now; wait for the next opportunity.
	volAwait = 0.199
	// volClose: weighted volatility above this closes an open stable period.
	volClose = 0.155
	// volTrigger: weighted volatility at or below this allows a retrain.
	volTrigger = 0.15
)

// Controller owns the retrain decision state. It is not safe for concurrent
// use; Tick is called from a single sampling loop.
type Controller struct {
	logger *zap.Logger
	model  string
	counts *window.Window

	iteration       int
	lastTrainCount  int64
	awaitingRetrain bool
	stable          bool
	periodStart     int64 // ns; 0 = no open stable period
	history         []domain.StablePeriod

	vol         float64
	weightedVol float64
}

// New creates a controller. windowSize bounds the cluster-count sample
// window; model names the downstream model in emitted train signals.
func New(logger *zap.Logger, model string, windowSize int) *Controller {
	return &Controller{
		logger:          logger,
		model:           model,
		counts:          window.New(windowSize),
		awaitingRetrain: true,
	}
}

// Tick ingests one cluster-count sample and advances the state machine.
// It returns a train signal carrying the accumulated stable-period history
// when a retrain trigger fires.
func (c *Controller) Tick(now time.Time, count int64) (domain.TrainSignal, bool) {
	if c.counts.Len() == 0 && count == 0 {
		c.logger.Debug("No template clusters learned yet")
		return domain.TrainSignal{}, false
	}

	c.iteration++
	c.counts.Push(float64(count))
	c.measure()

	c.logger.Debug("Sampled cluster count",
		zap.Int("iteration", c.iteration),
		zap.Int64("clusters", count),
		zap.Float64("vol", c.vol),
		zap.Float64("weighted_vol", c.weightedVol),
		zap.Int("stable_periods", len(c.history)),
	)
	observe(count, c.vol, c.weightedVol)

	if c.counts.Len() < minSamples {
		return domain.TrainSignal{}, false
	}

	ts := now.UnixNano()

	if c.weightedVol >= volAwait {
		c.awaitingRetrain = true
	}

	if c.weightedVol < volAwait && c.periodStart == 0 && c.awaitingRetrain {
		c.periodStart = ts
	}

	if c.weightedVol > volClose && !c.awaitingRetrain && c.stable {
		c.history = append(c.history, domain.StablePeriod{StartTS: c.periodStart, EndTS: ts})
		c.stable = false
		c.periodStart = 0
	}

	if c.weightedVol <= volTrigger && (c.awaitingRetrain || count > 2*c.lastTrainCount) {
		if c.periodStart != 0 {
			c.history = append(c.history, domain.StablePeriod{StartTS: c.periodStart, EndTS: ts})
		}
		signal := domain.TrainSignal{
			Model:     c.model,
			Intervals: append([]domain.StablePeriod{}, c.history...),
		}

		c.history = nil
		c.lastTrainCount = count
		c.awaitingRetrain = false
		c.stable = true
		c.periodStart = ts

		c.logger.Info("Emitting train signal",
			zap.Int("iteration", c.iteration),
			zap.Int64("clusters", count),
			zap.Int("intervals", len(signal.Intervals)),
		)
		return signal, true
	}

	return domain.TrainSignal{}, false
}

// measure recomputes plain and weighted volatility over the sample window.
// Both are normalized by the mean of the most recent samples; the weighted
// variant decays the weight of older samples linearly to zero.
func (c *Controller) measure() {
	vals := c.counts.Values()
	n := len(vals)

	base := n
	if base > baseSamples {
		base = baseSamples
	}
	mean := stat.Mean(vals[:base], nil)

	c.vol = stat.PopStdDev(vals, nil) / mean
	c.weightedVol = math.Sqrt(stat.PopVariance(vals, decayWeights(n))) / mean
}

// decayWeights returns linearly decaying weights for a most-recent-first
// series: the newest sample weighs 1, the oldest 1/n.
func decayWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = float64(n-i) / float64(n)
	}
	return w
}
