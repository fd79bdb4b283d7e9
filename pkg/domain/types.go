package domain

import "encoding/json"

// ChangeKind reports how the template miner reacted to one message.
type ChangeKind string

const (
	// ChangeClusterCreated means the message started a new template cluster.
	ChangeClusterCreated ChangeKind = "cluster_created"
	// ChangeTemplateChanged means the message refined an existing template.
	ChangeTemplateChanged ChangeKind = "cluster_template_changed"
	// ChangeNone means the message matched an existing template unchanged.
	ChangeNone ChangeKind = "none"
)

// LogRecord is one normalized log line awaiting classification.
type LogRecord struct {
	ID         string `json:"_id"`
	MaskedText string `json:"masked_log"`
}

// LogBatch is the unit of work handed from ingestion to scoring.
type LogBatch []LogRecord

// ClassificationResult is the template miner's verdict for one record.
type ClassificationResult struct {
	ID        string
	Change    ChangeKind
	ClusterID int64
	Template  string
	Support   int64
}

// ScoredRecord is the persisted and republished unit: one record with its
// anomaly verdict and the cluster it matched.
type ScoredRecord struct {
	ID        string
	Anomalous bool
	ClusterID int64
	Support   int64
}

// scoredRecordWire is the on-the-wire shape. The prediction travels as 0/1,
// not a JSON bool, and field names follow the upstream payload contract.
type scoredRecordWire struct {
	ID         string `json:"_id"`
	Prediction int    `json:"drain_prediction"`
	ClusterID  int64  `json:"drain_matched_template_id"`
	Support    int64  `json:"drain_matched_template_support"`
}

func (r ScoredRecord) MarshalJSON() ([]byte, error) {
	w := scoredRecordWire{ID: r.ID, ClusterID: r.ClusterID, Support: r.Support}
	if r.Anomalous {
		w.Prediction = 1
	}
	return json.Marshal(w)
}

func (r *ScoredRecord) UnmarshalJSON(data []byte) error {
	var w scoredRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = ScoredRecord{ID: w.ID, Anomalous: w.Prediction != 0, ClusterID: w.ClusterID, Support: w.Support}
	return nil
}

// UpdateBatch is a scored batch tagged with its target index and an
// idempotency token. The token keys the conditional anomaly-counter script
// so a retried batch cannot double-increment.
type UpdateBatch struct {
	Index   string
	Token   string
	Records []ScoredRecord
}

// StablePeriod is a closed interval during which the clustering model was
// judged stable. Timestamps are nanoseconds since the epoch.
type StablePeriod struct {
	StartTS int64 `json:"start_ts"`
	EndTS   int64 `json:"end_ts"`
}

// TrainSignal is published once per retrain trigger with the stable-period
// history accumulated since the previous trigger.
type TrainSignal struct {
	Model     string         `json:"model_to_train"`
	Intervals []StablePeriod `json:"time_intervals"`
}
