// Package ingest subscribes to the external log and anomaly-feedback
// streams and fans inbound batches into the internal bounded queues. A full
// queue blocks the handler; that block is the pipeline's only backpressure
// mechanism and is applied deliberately ahead of transport acknowledgement.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/logsieve/logsieve/pkg/domain"
)

// Conn is the subscribe surface of the message bus. *nats.Conn satisfies it.
type Conn interface {
	Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error)
}

// StageConfig configures the ingestion stage.
type StageConfig struct {
	LogsSubject      string
	AnomaliesSubject string
	// TargetIndex tags feedback batches with their search index.
	TargetIndex string
}

// Stage owns the two inbound subscriptions.
type Stage struct {
	logger *zap.Logger
	conn   Conn
	cfg    StageConfig

	logs    chan<- domain.LogBatch
	updates chan<- domain.UpdateBatch
}

// NewStage creates the ingestion stage.
func NewStage(logger *zap.Logger, conn Conn, cfg StageConfig, logs chan<- domain.LogBatch, updates chan<- domain.UpdateBatch) *Stage {
	return &Stage{logger: logger, conn: conn, cfg: cfg, logs: logs, updates: updates}
}

// Run subscribes to both streams and blocks until the context is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	s.logger.Info("Starting ingestion stage",
		zap.String("logs_subject", s.cfg.LogsSubject),
		zap.String("anomalies_subject", s.cfg.AnomaliesSubject),
	)

	logsSub, err := s.conn.Subscribe(s.cfg.LogsSubject, func(msg *nats.Msg) {
		s.handleLogs(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.LogsSubject, err)
	}
	defer func() {
		if err := logsSub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}()

	anomaliesSub, err := s.conn.Subscribe(s.cfg.AnomaliesSubject, func(msg *nats.Msg) {
		s.handleAnomalies(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.cfg.AnomaliesSubject, err)
	}
	defer func() {
		if err := anomaliesSub.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", zap.Error(err))
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// handleLogs decodes one preprocessed-logs message and enqueues it for
// scoring. A malformed payload is an upstream contract violation: it is
// logged and dropped, never retried.
func (s *Stage) handleLogs(ctx context.Context, data []byte) {
	var batch domain.LogBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		s.logger.Error("Malformed log payload",
			zap.String("subject", s.cfg.LogsSubject),
			zap.Error(err),
		)
		return
	}
	if len(batch) == 0 {
		return
	}
	select {
	case s.logs <- batch:
		batchesIngested.WithLabelValues("logs").Inc()
	case <-ctx.Done():
	}
}

// handleAnomalies decodes one externally-produced anomaly batch and
// enqueues it for persistence.
func (s *Stage) handleAnomalies(ctx context.Context, data []byte) {
	var records []domain.ScoredRecord
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Error("Malformed anomaly payload",
			zap.String("subject", s.cfg.AnomaliesSubject),
			zap.Error(err),
		)
		return
	}
	if len(records) == 0 {
		return
	}
	update := domain.UpdateBatch{
		Index:   s.cfg.TargetIndex,
		Token:   uuid.NewString(),
		Records: records,
	}
	select {
	case s.updates <- update:
		batchesIngested.WithLabelValues("anomalies").Inc()
	case <-ctx.Done():
	}
}
