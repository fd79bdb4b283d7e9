package scoring

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/miner"
)

type mockPublisher struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	Subject string
	Data    []byte
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMsg{Subject: subject, Data: data})
	return nil
}

func (m *mockPublisher) messages() []publishedMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedMsg{}, m.published...)
}

// fixedClassifier puts every message into the same cluster.
type fixedClassifier struct {
	calls   int
	support int64
}

func (f *fixedClassifier) Classify(masked string) domain.ClassificationResult {
	f.calls++
	change := domain.ChangeNone
	if f.calls == 1 {
		change = domain.ChangeClusterCreated
	}
	return domain.ClassificationResult{Change: change, ClusterID: 1, Template: masked, Support: f.support}
}

func newTestStage(t *testing.T, classifier miner.Classifier, pattern string, logs chan domain.LogBatch, updates chan domain.UpdateBatch) (*Stage, *mockPublisher) {
	t.Helper()
	scorer, err := NewScorer(pattern)
	require.NoError(t, err)
	pub := &mockPublisher{}
	stage := NewStage(zaptest.NewLogger(t), miner.NewTracked(classifier, 0), scorer, pub,
		StageConfig{PredictionsSubject: "anomalies", TargetIndex: "logs"}, logs, updates)
	return stage, pub
}

func TestStageScoresEveryNonEmptyRecord(t *testing.T) {
	logs := make(chan domain.LogBatch, 1)
	updates := make(chan domain.UpdateBatch, 1)
	stage, pub := newTestStage(t, &fixedClassifier{support: 3}, "", logs, updates)

	batch := domain.LogBatch{
		{ID: "a", MaskedText: "connection refused"},
		{ID: "b", MaskedText: ""},
		{ID: "c", MaskedText: "connection refused"},
	}
	require.NoError(t, stage.process(context.Background(), batch))

	update := <-updates
	require.Len(t, update.Records, 2)
	assert.Equal(t, "logs", update.Index)
	assert.NotEmpty(t, update.Token)
	assert.Equal(t, "a", update.Records[0].ID)
	assert.Equal(t, "c", update.Records[1].ID)
	// support 3 < 10: both anomalous
	assert.True(t, update.Records[0].Anomalous)
	assert.True(t, update.Records[1].Anomalous)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "anomalies", msgs[0].Subject)

	var scored []domain.ScoredRecord
	require.NoError(t, json.Unmarshal(msgs[0].Data, &scored))
	assert.Equal(t, update.Records, scored)
}

func TestStageSkipsAllEmptyBatch(t *testing.T) {
	logs := make(chan domain.LogBatch, 1)
	updates := make(chan domain.UpdateBatch, 1)
	stage, pub := newTestStage(t, &fixedClassifier{support: 3}, "", logs, updates)

	require.NoError(t, stage.process(context.Background(), domain.LogBatch{{ID: "a"}, {ID: "b"}}))

	assert.Empty(t, pub.messages())
	select {
	case u := <-updates:
		t.Fatalf("unexpected update batch: %+v", u)
	default:
	}
}

func TestStageBackpressureOnFullUpdateQueue(t *testing.T) {
	logs := make(chan domain.LogBatch, 2)
	updates := make(chan domain.UpdateBatch, 1)
	stage, _ := newTestStage(t, &fixedClassifier{support: 50}, "", logs, updates)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- stage.Run(ctx) }()

	logs <- domain.LogBatch{{ID: "a", MaskedText: "m"}}
	logs <- domain.LogBatch{{ID: "b", MaskedText: "m"}}

	// First batch fills the update queue; the second blocks the stage.
	var first domain.UpdateBatch
	select {
	case first = <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("first update batch never arrived")
	}
	assert.Equal(t, "a", first.Records[0].ID)

	// Draining resumes the stage: the second batch arrives, nothing lost.
	select {
	case second := <-updates:
		assert.Equal(t, "b", second.Records[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("second update batch never arrived after drain")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestStageTrackingWindows(t *testing.T) {
	logs := make(chan domain.LogBatch, 1)
	updates := make(chan domain.UpdateBatch, 4)
	stage, _ := newTestStage(t, &fixedClassifier{support: 50}, "", logs, updates)

	// First batch creates the cluster, later batches match it unchanged.
	require.NoError(t, stage.process(context.Background(), domain.LogBatch{{ID: "a", MaskedText: "m"}}))
	require.NoError(t, stage.process(context.Background(), domain.LogBatch{
		{ID: "b", MaskedText: "m"}, {ID: "c", MaskedText: "m"},
	}))

	assert.Equal(t, []float64{1}, stage.created.Values())
	assert.Equal(t, []float64{2}, stage.unchanged.Values())
	assert.Equal(t, 0, stage.changed.Len())
}
