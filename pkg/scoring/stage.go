package scoring

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/miner"
	"github.com/logsieve/logsieve/pkg/window"
)

// trackingWindowSize bounds the per-batch change-count observability windows.
const trackingWindowSize = 50

// Publisher publishes a payload on a named subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// StageConfig configures the scoring stage.
type StageConfig struct {
	// PredictionsSubject is where scored batches are republished.
	PredictionsSubject string
	// TargetIndex tags outgoing update batches with their search index.
	TargetIndex string
}

// Stage drains the log queue, classifies each record against the template
// miner, scores the results, republishes predictions and hands the scored
// batch to persistence. It is the single writer of the miner.
type Stage struct {
	logger *zap.Logger
	miner  *miner.Tracked
	scorer *Scorer
	pub    Publisher
	cfg    StageConfig

	logs    <-chan domain.LogBatch
	updates chan<- domain.UpdateBatch

	created   *window.Window
	changed   *window.Window
	unchanged *window.Window
}

// NewStage creates the scoring stage. The stage takes ownership of the
// miner's write handle.
func NewStage(
	logger *zap.Logger,
	m *miner.Tracked,
	scorer *Scorer,
	pub Publisher,
	cfg StageConfig,
	logs <-chan domain.LogBatch,
	updates chan<- domain.UpdateBatch,
) *Stage {
	return &Stage{
		logger:    logger,
		miner:     m,
		scorer:    scorer,
		pub:       pub,
		cfg:       cfg,
		logs:      logs,
		updates:   updates,
		created:   window.New(trackingWindowSize),
		changed:   window.New(trackingWindowSize),
		unchanged: window.New(trackingWindowSize),
	}
}

// Run processes batches until the context is cancelled.
func (s *Stage) Run(ctx context.Context) error {
	s.logger.Info("Starting scoring stage",
		zap.String("predictions_subject", s.cfg.PredictionsSubject),
		zap.String("target_index", s.cfg.TargetIndex),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch := <-s.logs:
			if err := s.process(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// process classifies, scores, publishes and enqueues one batch. Returns an
// error only on context cancellation; transport failures are logged and the
// batch still reaches the persistence queue.
func (s *Stage) process(ctx context.Context, batch domain.LogBatch) error {
	results := make([]domain.ClassificationResult, 0, len(batch))
	for _, rec := range batch {
		if rec.MaskedText == "" {
			continue
		}
		res := s.miner.Classify(rec.MaskedText)
		res.ID = rec.ID
		results = append(results, res)
	}
	if len(results) == 0 {
		return nil
	}

	s.track(results)

	scored := s.scorer.Score(results)
	recordsProcessed.Add(float64(len(scored)))
	for _, rec := range scored {
		if rec.Anomalous {
			anomaliesFlagged.Inc()
		}
	}

	if err := s.publish(scored); err != nil {
		s.logger.Error("Failed to publish predictions",
			zap.String("subject", s.cfg.PredictionsSubject),
			zap.Int("records", len(scored)),
			zap.Error(err),
		)
	}

	update := domain.UpdateBatch{
		Index:   s.cfg.TargetIndex,
		Token:   uuid.NewString(),
		Records: scored,
	}
	select {
	case s.updates <- update:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Stage) publish(scored []domain.ScoredRecord) error {
	payload, err := json.Marshal(scored)
	if err != nil {
		return fmt.Errorf("failed to encode predictions: %w", err)
	}
	return s.pub.Publish(s.cfg.PredictionsSubject, payload)
}

// track records per-batch change counts in the observability windows. A
// window only advances when its change kind occurred in the batch.
func (s *Stage) track(results []domain.ClassificationResult) {
	counts := make(map[domain.ChangeKind]int, 3)
	for _, res := range results {
		counts[res.Change]++
	}
	if n := counts[domain.ChangeClusterCreated]; n > 0 {
		s.created.Push(float64(n))
	}
	if n := counts[domain.ChangeTemplateChanged]; n > 0 {
		s.changed.Push(float64(n))
	}
	if n := counts[domain.ChangeNone]; n > 0 {
		s.unchanged.Push(float64(n))
	}
	changeCounts.WithLabelValues(string(domain.ChangeClusterCreated)).Set(s.created.Latest())
	changeCounts.WithLabelValues(string(domain.ChangeTemplateChanged)).Set(s.changed.Latest())
	changeCounts.WithLabelValues(string(domain.ChangeNone)).Set(s.unchanged.Latest())
}
