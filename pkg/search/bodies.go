package search

import (
	"encoding/json"
	"fmt"

	"github.com/logsieve/logsieve/pkg/domain"
)

func encodeScriptBody(token string) ([]byte, error) {
	body, err := json.Marshal(scriptBody{Script: script{
		Source: anomalyScript,
		Lang:   "painless",
		Params: map[string]string{"token": token},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode anomaly script: %w", err)
	}
	return body, nil
}

func encodeDocBody(rec domain.ScoredRecord) ([]byte, error) {
	body, err := json.Marshal(docBody{Doc: templateFields{
		ClusterID: rec.ClusterID,
		Support:   rec.Support,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode field update: %w", err)
	}
	return body, nil
}
