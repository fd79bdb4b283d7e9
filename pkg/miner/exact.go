package miner

import "github.com/logsieve/logsieve/pkg/domain"

// Exact is a minimal in-process Classifier: every distinct masked message is
// its own template cluster. Deployments plug the real incremental mining
// engine in its place; Exact keeps the pipeline runnable without one.
type Exact struct {
	clusters map[string]*exactCluster
	nextID   int64
}

type exactCluster struct {
	id      int64
	support int64
}

// NewExact creates an empty exact-match classifier.
func NewExact() *Exact {
	return &Exact{clusters: make(map[string]*exactCluster)}
}

// Classify registers or matches the masked message. Templates never mutate,
// so it only ever reports cluster_created or none.
func (e *Exact) Classify(masked string) domain.ClassificationResult {
	c, ok := e.clusters[masked]
	if !ok {
		e.nextID++
		c = &exactCluster{id: e.nextID}
		e.clusters[masked] = c
		c.support++
		return domain.ClassificationResult{
			Change:    domain.ChangeClusterCreated,
			ClusterID: c.id,
			Template:  masked,
			Support:   c.support,
		}
	}
	c.support++
	return domain.ClassificationResult{
		Change:    domain.ChangeNone,
		ClusterID: c.id,
		Template:  masked,
		Support:   c.support,
	}
}
