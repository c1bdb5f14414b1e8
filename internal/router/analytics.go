package router

import (
	"sort"
	"sync"
)

// Analytics accumulates routing outcomes. One route is recorded per
// RouteTask or RouteToWorker call that dispatched at least one attempt;
// routes that never reached a worker leave no trace.
type Analytics struct {
	// mu protects everything below.
	mu           sync.RWMutex
	totalRoutes  int
	totalAttempts int
	cacheHits    int
	cacheMisses  int
	perWorker    map[string]*workerUsage
}

type workerUsage struct {
	routes    int
	successes int
}

// WorkerUsage is the per-worker slice of a Snapshot.
type WorkerUsage struct {
	Worker    string `json:"worker"`
	Routes    int    `json:"routes"`
	Successes int    `json:"successes"`
}

// Snapshot is a point-in-time copy of the analytics counters.
type Snapshot struct {
	TotalRoutes   int           `json:"total_routes"`
	TotalAttempts int           `json:"total_attempts"`
	CacheHits     int           `json:"cache_hits"`
	CacheMisses   int           `json:"cache_misses"`
	CacheHitRate  float64       `json:"cache_hit_rate"`
	Workers       []WorkerUsage `json:"workers,omitempty"`
}

func newAnalytics() *Analytics {
	return &Analytics{perWorker: make(map[string]*workerUsage)}
}

// recordRoute adds one completed route: the worker that handled (or finally
// failed) it, whether it succeeded, and how many attempts it took.
func (a *Analytics) recordRoute(worker string, success bool, attempts int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalRoutes++
	a.totalAttempts += attempts
	u, ok := a.perWorker[worker]
	if !ok {
		u = &workerUsage{}
		a.perWorker[worker] = u
	}
	u.routes++
	if success {
		u.successes++
	}
}

func (a *Analytics) recordCacheHit() {
	a.mu.Lock()
	a.cacheHits++
	a.mu.Unlock()
}

func (a *Analytics) recordCacheMiss() {
	a.mu.Lock()
	a.cacheMisses++
	a.mu.Unlock()
}

// Snapshot copies the current counters, workers sorted by name.
func (a *Analytics) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := Snapshot{
		TotalRoutes:   a.totalRoutes,
		TotalAttempts: a.totalAttempts,
		CacheHits:     a.cacheHits,
		CacheMisses:   a.cacheMisses,
	}
	if lookups := a.cacheHits + a.cacheMisses; lookups > 0 {
		s.CacheHitRate = float64(a.cacheHits) / float64(lookups)
	}
	for name, u := range a.perWorker {
		s.Workers = append(s.Workers, WorkerUsage{Worker: name, Routes: u.routes, Successes: u.successes})
	}
	sort.Slice(s.Workers, func(i, j int) bool { return s.Workers[i].Worker < s.Workers[j].Worker })
	return s
}
