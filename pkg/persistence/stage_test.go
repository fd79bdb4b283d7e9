package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/logsieve/logsieve/pkg/domain"
	"github.com/logsieve/logsieve/pkg/search"
)

type indexCall struct {
	op      string
	index   string
	token   string
	records []domain.ScoredRecord
}

type fakeIndex struct {
	calls        []indexCall
	anomalyErrs  []error
	templateErrs []error
	reconnects   int
	reconnectErr error
}

func (f *fakeIndex) UpdateAnomalies(_ context.Context, index, token string, records []domain.ScoredRecord) error {
	f.calls = append(f.calls, indexCall{op: "anomalies", index: index, token: token, records: records})
	if len(f.anomalyErrs) > 0 {
		err := f.anomalyErrs[0]
		f.anomalyErrs = f.anomalyErrs[1:]
		return err
	}
	return nil
}

func (f *fakeIndex) UpdateTemplates(_ context.Context, index string, records []domain.ScoredRecord) error {
	f.calls = append(f.calls, indexCall{op: "templates", index: index, records: records})
	if len(f.templateErrs) > 0 {
		err := f.templateErrs[0]
		f.templateErrs = f.templateErrs[1:]
		return err
	}
	return nil
}

func (f *fakeIndex) Reconnect() error {
	f.reconnects++
	return f.reconnectErr
}

func testBatch() domain.UpdateBatch {
	return domain.UpdateBatch{
		Index: "logs",
		Token: "tok-1",
		Records: []domain.ScoredRecord{
			{ID: "a", Anomalous: true, ClusterID: 1, Support: 2},
			{ID: "b", Anomalous: false, ClusterID: 2, Support: 50},
			{ID: "c", Anomalous: true, ClusterID: 1, Support: 2},
		},
	}
}

func TestStagePartitionsBatch(t *testing.T) {
	idx := &fakeIndex{}
	queue := make(chan domain.UpdateBatch, 4)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	stage.process(context.Background(), testBatch())

	require.Len(t, idx.calls, 2)
	assert.Equal(t, "anomalies", idx.calls[0].op)
	assert.Equal(t, "tok-1", idx.calls[0].token)
	require.Len(t, idx.calls[0].records, 2)
	assert.Equal(t, "a", idx.calls[0].records[0].ID)
	assert.Equal(t, "c", idx.calls[0].records[1].ID)

	assert.Equal(t, "templates", idx.calls[1].op)
	assert.Len(t, idx.calls[1].records, 3)
	assert.Empty(t, queue)
}

func TestStageSkipsAnomalyCallWhenNoneAnomalous(t *testing.T) {
	idx := &fakeIndex{}
	queue := make(chan domain.UpdateBatch, 4)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	batch := domain.UpdateBatch{Index: "logs", Token: "t", Records: []domain.ScoredRecord{
		{ID: "a", Anomalous: false, Support: 50},
	}}
	stage.process(context.Background(), batch)

	require.Len(t, idx.calls, 1)
	assert.Equal(t, "templates", idx.calls[0].op)
}

func TestStageRequeuesTransientFailureOnce(t *testing.T) {
	idx := &fakeIndex{
		templateErrs: []error{fmt.Errorf("2 of 3 documents failed: %w", search.ErrTransient)},
	}
	queue := make(chan domain.UpdateBatch, 4)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	batch := testBatch()
	stage.process(context.Background(), batch)

	// The exact batch reappears on the queue exactly once, unmodified.
	require.Len(t, queue, 1)
	requeued := <-queue
	assert.Equal(t, batch, requeued)
	assert.Zero(t, idx.reconnects)

	// Retrying succeeds and does not re-enqueue again.
	stage.process(context.Background(), requeued)
	assert.Empty(t, queue)
}

func TestStageRequeuesAnomalySubsetOnFailure(t *testing.T) {
	idx := &fakeIndex{
		anomalyErrs: []error{fmt.Errorf("timeout: %w", search.ErrTransient)},
	}
	queue := make(chan domain.UpdateBatch, 4)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	stage.process(context.Background(), testBatch())

	// Only the anomalous subset is re-enqueued; the template update for the
	// full batch still went through.
	require.Len(t, queue, 1)
	requeued := <-queue
	assert.Equal(t, "tok-1", requeued.Token)
	require.Len(t, requeued.Records, 2)
	assert.True(t, requeued.Records[0].Anomalous)
	assert.True(t, requeued.Records[1].Anomalous)
	require.Len(t, idx.calls, 2)
	assert.Equal(t, "templates", idx.calls[1].op)
}

func TestStageReconnectsAndRetriesOnConnectionFailure(t *testing.T) {
	idx := &fakeIndex{
		templateErrs: []error{fmt.Errorf("no route to host: %w", search.ErrConnection)},
	}
	queue := make(chan domain.UpdateBatch, 4)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	batch := testBatch()
	stage.process(context.Background(), batch)

	assert.Equal(t, 1, idx.reconnects)
	// The in-flight batch is retried after reconnect, not dropped.
	require.Len(t, queue, 1)
	assert.Equal(t, batch, <-queue)
}

func TestStageDropsWhenQueueFull(t *testing.T) {
	idx := &fakeIndex{
		templateErrs: []error{fmt.Errorf("boom: %w", search.ErrTransient)},
	}
	queue := make(chan domain.UpdateBatch, 1)
	queue <- testBatch() // occupy the only slot
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	stage.process(context.Background(), testBatch())
	assert.Len(t, queue, 1)
}

func TestStageRunStopsOnCancel(t *testing.T) {
	idx := &fakeIndex{}
	queue := make(chan domain.UpdateBatch, 1)
	stage := NewStage(zaptest.NewLogger(t), idx, queue)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stage.Run(ctx) }()

	queue <- testBatch()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
