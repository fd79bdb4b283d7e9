// Package service wires the pipeline: NATS subscriptions feed bounded
// queues, the scoring stage drives the template miner, the persistence
// stage applies scored batches to the search index, and the retrain
// controller samples the miner's cluster count.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/logsieve/logsieve/pkg/config"
	"github.com/logsieve/logsieve/pkg/controller"
	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/ingest"
	"github.com/logsieve/logsieve/pkg/miner"
	"github.com/logsieve/logsieve/pkg/persistence"
	"github.com/logsieve/logsieve/pkg/scoring"
	"github.com/logsieve/logsieve/pkg/search"
)

// Service owns the pipeline components and their shared resources.
type Service struct {
	logger *zap.Logger
	nc     *nats.Conn

	ingest  *ingest.Stage
	scoring *scoring.Stage
	persist *persistence.Stage
	loop    *controller.Loop
}

// New connects to the message bus and search index and assembles the
// pipeline around the given clustering capability.
func New(logger *zap.Logger, cfg *config.Config, classifier miner.Classifier) (*Service, error) {
	nc, err := connect(logger, cfg.NATS)
	if err != nil {
		return nil, err
	}

	sc, err := search.NewClient(logger, cfg.Elastic)
	if err != nil {
		nc.Close()
		return nil, err
	}

	scorer, err := scoring.NewScorer(cfg.Scoring.KeywordPattern())
	if err != nil {
		nc.Close()
		return nil, err
	}

	logs := make(chan domain.LogBatch, cfg.Queues.LogQueueSize)
	updates := make(chan domain.UpdateBatch, cfg.Queues.UpdateQueueSize)

	tracked := miner.NewTracked(classifier, 0)
	ctl := controller.New(logger, cfg.Controller.Model, cfg.Controller.WindowSize)

	return &Service{
		logger: logger,
		nc:     nc,
		ingest: ingest.NewStage(logger, nc, ingest.StageConfig{
			LogsSubject:      cfg.NATS.LogsSubject,
			AnomaliesSubject: cfg.NATS.AnomaliesSubject,
			TargetIndex:      cfg.Elastic.Index,
		}, logs, updates),
		scoring: scoring.NewStage(logger, tracked, scorer, nc, scoring.StageConfig{
			PredictionsSubject: cfg.NATS.AnomaliesSubject,
			TargetIndex:        cfg.Elastic.Index,
		}, logs, updates),
		persist: persistence.NewStage(logger, sc, updates),
		loop:    controller.NewLoop(logger, ctl, tracked, nc, cfg.NATS.TrainSubject, cfg.Controller.SamplePeriod),
	}, nil
}

// Run starts all pipeline loops and blocks until the context is cancelled
// or a loop fails. Shutdown is abrupt: in-flight queue contents are not
// drained.
func (s *Service) Run(ctx context.Context) error {
	defer s.nc.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ingest.Run(ctx) })
	g.Go(func() error { return s.scoring.Run(ctx) })
	g.Go(func() error { return s.persist.Run(ctx) })
	g.Go(func() error { return s.loop.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Info("Pipeline stopped")
	return nil
}

// connect establishes the NATS connection with reconnect handling.
func connect(logger *zap.Logger, cfg config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL, connectOptions(logger, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// connectOptions builds the shared connection's option set. NoEcho is
// required: the scoring stage publishes predictions on the same subject
// the ingest stage subscribes to for external feedback, and without it
// the server would echo every prediction back as a second, differently
// tokened update batch.
func connectOptions(logger *zap.Logger, cfg config.NATSConfig) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.Name),
		nats.NoEcho(),
		nats.Timeout(cfg.ConnectionTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
	}
}
