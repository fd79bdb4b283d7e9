package miner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logsieve/logsieve/pkg/domain"
)

type scriptedClassifier struct {
	changes []domain.ChangeKind
	i       int
}

func (s *scriptedClassifier) Classify(masked string) domain.ClassificationResult {
	change := s.changes[s.i%len(s.changes)]
	s.i++
	return domain.ClassificationResult{Change: change, ClusterID: int64(s.i), Template: masked, Support: 1}
}

func TestTrackedCountsNewClusters(t *testing.T) {
	tracked := NewTracked(&scriptedClassifier{changes: []domain.ChangeKind{
		domain.ChangeClusterCreated,
		domain.ChangeNone,
		domain.ChangeTemplateChanged,
		domain.ChangeClusterCreated,
	}}, 0)

	for i := 0; i < 4; i++ {
		tracked.Classify("msg")
	}
	assert.Equal(t, int64(2), tracked.ClusterCount())
}

func TestTrackedInitialCount(t *testing.T) {
	tracked := NewTracked(&scriptedClassifier{changes: []domain.ChangeKind{domain.ChangeNone}}, 17)
	assert.Equal(t, int64(17), tracked.ClusterCount())
}

func TestTrackedConcurrentReads(t *testing.T) {
	tracked := NewTracked(&scriptedClassifier{changes: []domain.ChangeKind{domain.ChangeClusterCreated}}, 0)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				_ = tracked.ClusterCount()
			}
		}
	}()

	for i := 0; i < 1000; i++ {
		tracked.Classify("msg")
	}
	close(done)
	wg.Wait()
	assert.Equal(t, int64(1000), tracked.ClusterCount())
}
