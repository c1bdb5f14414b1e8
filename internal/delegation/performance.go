package delegation

import (
	"sort"
	"sync"
	"time"

	"github.com/seralin/drover/pkg/models"
)

// unseenSuccessRate is assumed for workers with no recorded attempts, so a
// new worker is neither favored nor punished.
const unseenSuccessRate = 0.5

// Tracker accumulates per-worker execution outcomes. Each completed attempt
// is recorded exactly once; numbers are never reset.
type Tracker struct {
	// mu protects stats.
	mu    sync.RWMutex
	stats map[string]*workerStats
}

type workerStats struct {
	successes int
	failures  int
	// avgMs is the running mean duration of successful attempts.
	avgMs float64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*workerStats)}
}

// Record adds one attempt outcome. elapsed only contributes to the average
// on success; failures leave the average untouched.
func (t *Tracker) Record(worker string, success bool, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stats[worker]
	if !ok {
		s = &workerStats{}
		t.stats[worker] = s
	}
	if success {
		s.successes++
		ms := float64(elapsed.Milliseconds())
		s.avgMs += (ms - s.avgMs) / float64(s.successes)
	} else {
		s.failures++
	}
}

// Rate returns the worker's success rate, or 0.5 when nothing is recorded.
func (t *Tracker) Rate(worker string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[worker]
	if !ok || s.successes+s.failures == 0 {
		return unseenSuccessRate
	}
	return float64(s.successes) / float64(s.successes+s.failures)
}

// Metric returns the cumulative record for one worker.
func (t *Tracker) Metric(worker string) (models.PerformanceMetric, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[worker]
	if !ok {
		return models.PerformanceMetric{}, false
	}
	return metricFor(worker, s), true
}

// All returns metrics for every tracked worker, sorted by name.
func (t *Tracker) All() []models.PerformanceMetric {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.PerformanceMetric, 0, len(t.stats))
	for name, s := range t.stats {
		out = append(out, metricFor(name, s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}

func metricFor(name string, s *workerStats) models.PerformanceMetric {
	total := s.successes + s.failures
	m := models.PerformanceMetric{
		Worker:           name,
		AvgExecutionTime: s.avgMs,
		TotalTasks:       total,
	}
	if total > 0 {
		m.SuccessRate = float64(s.successes) / float64(total)
	}
	return m
}
