package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/search"
)

// Index is the bulk-update surface the stage persists through. *search.Client
// satisfies it; tests inject fakes.
type Index interface {
	UpdateAnomalies(ctx context.Context, index, token string, records []domain.ScoredRecord) error
	UpdateTemplates(ctx context.Context, index string, records []domain.ScoredRecord) error
	Reconnect() error
}

// Stage drains the update queue and bulk-applies scored batches to the
// search index with partial-failure recovery. Failed batches are
// re-enqueued for another attempt (at-least-once; the batch token keeps the
// anomaly script idempotent across retries).
type Stage struct {
	logger *zap.Logger
	index  Index
	queue  chan domain.UpdateBatch
}

// NewStage creates the persistence stage. The stage both consumes from and
// re-enqueues onto queue.
func NewStage(logger *zap.Logger, index Index, queue chan domain.UpdateBatch) *Stage {
	return &Stage{logger: logger, index: index, queue: queue}
}

// Run processes update batches until the context is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	s.logger.Info("Starting persistence stage")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-s.queue:
			s.process(ctx, batch)
		}
	}
}

func (s *Stage) process(ctx context.Context, batch domain.UpdateBatch) {
	anomalous := anomalousSubset(batch.Records)
	if len(anomalous) == 0 {
		s.logger.Info("No anomalies in batch", zap.Int("records", len(batch.Records)))
	} else {
		if err := s.index.UpdateAnomalies(ctx, batch.Index, batch.Token, anomalous); err != nil {
			s.recover(err, domain.UpdateBatch{Index: batch.Index, Token: batch.Token, Records: anomalous})
		} else {
			anomaliesPersisted.Add(float64(len(anomalous)))
			s.logger.Info("Updated anomalies in search index",
				zap.Int("records", len(anomalous)),
				zap.String("index", batch.Index),
			)
		}
	}

	if err := s.index.UpdateTemplates(ctx, batch.Index, batch.Records); err != nil {
		s.recover(err, batch)
		return
	}
	recordsPersisted.Add(float64(len(batch.Records)))
	s.logger.Info("Updated records in search index",
		zap.Int("records", len(batch.Records)),
		zap.String("index", batch.Index),
	)
}

// recover applies the failure policy: reconnect on transport-level errors,
// then re-enqueue the failed subset for another attempt in either case.
func (s *Stage) recover(err error, batch domain.UpdateBatch) {
	if errors.Is(err, search.ErrConnection) {
		s.logger.Error("Search transport failure, reconnecting", zap.Error(err))
		if rerr := s.index.Reconnect(); rerr != nil {
			s.logger.Error("Failed to reconnect search client", zap.Error(rerr))
		}
	} else {
		s.logger.Error("Bulk update failed, re-enqueueing batch",
			zap.Int("records", len(batch.Records)),
			zap.Error(err),
		)
	}

	retriesEnqueued.Inc()
	// Non-blocking: the stage is the queue's only consumer, so a blocking
	// send on a full queue would deadlock the pipeline.
	select {
	case s.queue <- batch:
	default:
		s.logger.Error("Persistence queue full, dropping failed batch",
			zap.Int("records", len(batch.Records)),
			zap.String("index", batch.Index),
		)
		batchesDropped.Inc()
	}
}

func anomalousSubset(records []domain.ScoredRecord) []domain.ScoredRecord {
	var out []domain.ScoredRecord
	for _, rec := range records {
		if rec.Anomalous {
			out = append(out, rec)
		}
	}
	return out
}
