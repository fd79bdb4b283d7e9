// Package miner defines the capability boundary to the incremental
// template-mining engine. The engine itself lives outside this service; it
// is consumed through a narrow classify/count contract.
package miner

import (
	"sync/atomic"

	"github.com/logsieve/logsieve/pkg/domain"
)

// Classifier ingests one masked message and classifies it against the
// template model. Implementations are stateful and not safe for concurrent
// use: exactly one goroutine may call Classify.
type Classifier interface {
	Classify(masked string) domain.ClassificationResult
}

// CountSource exposes a point-in-time total cluster count. Reads are safe
// concurrently with the single Classify writer.
type CountSource interface {
	ClusterCount() int64
}

// Tracked wraps a Classifier and mirrors the total cluster count into an
// atomic, giving readers a lock-free monotonically-consistent snapshot
// without touching the non-thread-safe engine. The scoring stage holds the
// *Tracked write handle; other components receive only the CountSource view.
type Tracked struct {
	inner Classifier
	count atomic.Int64
}

// NewTracked wraps classifier; initial holds the cluster count already
// present in the engine state (0 for a fresh model).
func NewTracked(classifier Classifier, initial int64) *Tracked {
	t := &Tracked{inner: classifier}
	t.count.Store(initial)
	return t
}

// Classify forwards to the wrapped engine and keeps the count mirror
// current. Single caller only.
func (t *Tracked) Classify(masked string) domain.ClassificationResult {
	res := t.inner.Classify(masked)
	if res.Change == domain.ChangeClusterCreated {
		t.count.Add(1)
	}
	return res
}

// ClusterCount returns the mirrored total cluster count.
func (t *Tracked) ClusterCount() int64 {
	return t.count.Load()
}
