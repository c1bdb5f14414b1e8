package delegation

import (
	"math"
	"sort"

	"github.com/seralin/drover/pkg/models"
)

// Candidate pairs a worker with its capability score for one selection pass.
type Candidate struct {
	Worker *models.Worker
	// Score is required-tag overlap divided by the required count, in [0,1].
	Score float64
}

// RankByCapability orders workers best-first: capability score descending,
// then success rate descending, then load ratio ascending. rate may be nil;
// workers with no recorded attempts count as 0.5.
func RankByCapability(workers []*models.Worker, required []string, rate func(string) float64) []Candidate {
	ranked := make([]Candidate, 0, len(workers))
	for _, w := range workers {
		ranked = append(ranked, Candidate{Worker: w, Score: capabilityScore(w, required)})
	}

	successRate := func(name string) float64 {
		if rate == nil {
			return 0.5
		}
		return rate(name)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		ri, rj := successRate(ranked[i].Worker.Name), successRate(ranked[j].Worker.Name)
		if ri != rj {
			return ri > rj
		}
		return ranked[i].Worker.LoadRatio() < ranked[j].Worker.LoadRatio()
	})
	return ranked
}

// capabilityScore is the fraction of required tags the worker declares.
// With nothing required every worker scores zero and ordering falls to
// success rate and load.
func capabilityScore(w *models.Worker, required []string) float64 {
	if len(required) == 0 {
		return 0
	}
	return float64(w.CapabilityOverlap(required)) / float64(len(required))
}

// Confidence converts a capability score into the decision confidence,
// capped at 0.9.
func Confidence(score float64) float64 {
	return math.Min(0.9, 0.5+score*0.4)
}
