package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoredRecordWireShape(t *testing.T) {
	rec := ScoredRecord{ID: "doc-1", Anomalous: true, ClusterID: 7, Support: 3}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"doc-1","drain_prediction":1,"drain_matched_template_id":7,"drain_matched_template_support":3}`, string(data))

	var back ScoredRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec, back)
}

func TestScoredRecordPredictionZero(t *testing.T) {
	data, err := json.Marshal(ScoredRecord{ID: "doc-2", ClusterID: 1, Support: 100})
	require.NoError(t, err)

	var w map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &w))
	assert.Equal(t, "0", string(w["drain_prediction"]))
}

func TestTrainSignalShape(t *testing.T) {
	sig := TrainSignal{
		Model:     "nulog",
		Intervals: []StablePeriod{{StartTS: 10, EndTS: 20}},
	}
	data, err := json.Marshal(sig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_to_train":"nulog","time_intervals":[{"start_ts":10,"end_ts":20}]}`, string(data))
}
