package scoring

import (
	"fmt"
	"regexp"

	"github.com/logsieve/logsieve/pkg/domain"
)

// lowSupportThreshold: clusters seen strictly fewer than this many times are
// considered too young to trust.
const lowSupportThreshold = 10

// Scorer flags anomalous classification results. A record is anomalous when
// its cluster support is below the threshold or its mined template matches
// the configured keyword alternation.
type Scorer struct {
	keywords *regexp.Regexp
}

// NewScorer compiles the keyword alternation pattern. An empty pattern
// yields a scorer whose keyword clause matches nothing.
func NewScorer(pattern string) (*Scorer, error) {
	if pattern == "" {
		return &Scorer{}, nil
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid fail-keyword pattern %q: %w", pattern, err)
	}
	return &Scorer{keywords: rx}, nil
}

// Anomalous applies the heuristic to one classification result.
func (s *Scorer) Anomalous(res domain.ClassificationResult) bool {
	if res.Support < lowSupportThreshold {
		return true
	}
	return s.keywords != nil && s.keywords.MatchString(res.Template)
}

// Score projects classification results to scored records.
func (s *Scorer) Score(results []domain.ClassificationResult) []domain.ScoredRecord {
	out := make([]domain.ScoredRecord, 0, len(results))
	for _, res := range results {
		out = append(out, domain.ScoredRecord{
			ID:        res.ID,
			Anomalous: s.Anomalous(res),
			ClusterID: res.ClusterID,
			Support:   res.Support,
		})
	}
	return out
}
