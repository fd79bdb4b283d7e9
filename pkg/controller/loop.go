package controller

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/logsieve/logsieve/pkg/miner"
)

// Publisher publishes a payload on a named subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Loop runs the controller on a fixed cadence against the live cluster
// count and publishes emitted train signals.
type Loop struct {
	logger  *zap.Logger
	ctl     *Controller
	counts  miner.CountSource
	pub     Publisher
	subject string
	period  time.Duration
}

// NewLoop wires a controller to its count source and transport.
func NewLoop(logger *zap.Logger, ctl *Controller, counts miner.CountSource, pub Publisher, subject string, period time.Duration) *Loop {
	return &Loop{
		logger:  logger,
		ctl:     ctl,
		counts:  counts,
		pub:     pub,
		subject: subject,
		period:  period,
	}
}

// Run samples until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Starting retrain signal controller",
		zap.Duration("sample_period", l.period),
		zap.String("train_subject", l.subject),
	)

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			signal, ok := l.ctl.Tick(now, l.counts.ClusterCount())
			if !ok {
				continue
			}
			payload, err := json.Marshal(signal)
			if err != nil {
				l.logger.Error("Failed to encode train signal", zap.Error(err))
				continue
			}
			if err := l.pub.Publish(l.subject, payload); err != nil {
				l.logger.Error("Failed to publish train signal",
					zap.String("subject", l.subject),
					zap.Error(err),
				)
				continue
			}
			trainSignals.Inc()
		}
	}
}
