// Package router implements direct task routing: a cacheable selection pass
// over the registry followed by a configured fallback chain. Unlike the
// delegation engine it keeps no retry state; a route either lands or walks
// the chain once.
package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/seralin/drover/internal/delegation"
	"github.com/seralin/drover/internal/events"
	"github.com/seralin/drover/internal/registry"
	"github.com/seralin/drover/pkg/models"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 10 * time.Minute
	// cacheKeyDescLen caps how much of the description feeds the cache key.
	cacheKeyDescLen = 64
)

// Options configures a Router.
type Options struct {
	// DefaultWorker handles tasks with no capability requirements when it is
	// available.
	DefaultWorker string
	// FallbackChain is walked in declared order after a failed attempt.
	FallbackChain []string
	// CacheSize bounds the route cache entry count. Defaults to 128.
	CacheSize int
	// CacheTTL expires cached routes. Defaults to 10 minutes.
	CacheTTL time.Duration
	// Rates supplies per-worker success rates for selection scoring.
	// Nil treats every worker as unproven.
	Rates func(string) float64
	// Clock drives decision timestamps. Defaults to the wall clock.
	Clock clock.Clock
	// Events receives routing events. Nil means no subscribers.
	Events events.Publisher
}

// Router routes tasks straight to workers, remembering successful routes in
// a bounded TTL cache.
type Router struct {
	registry  *registry.Registry
	cache     *ttlcache.Cache[string, string]
	analytics *Analytics
	events    events.Publisher
	clock     clock.Clock
	opts      Options

	// cached gauges the live cache entry count via insertion and eviction
	// callbacks.
	cached atomic.Int64
}

// New creates a Router over the given registry.
func New(reg *registry.Registry, opts Options) *Router {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	r := &Router{
		registry:  reg,
		analytics: newAnalytics(),
		events:    opts.Events,
		clock:     opts.Clock,
		opts:      opts,
	}
	r.cache = ttlcache.New(
		ttlcache.WithCapacity[string, string](uint64(opts.CacheSize)),
		ttlcache.WithTTL[string, string](opts.CacheTTL),
	)
	r.cache.OnInsertion(func(ctx context.Context, item *ttlcache.Item[string, string]) {
		r.cached.Add(1)
	})
	r.cache.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, string]) {
		r.cached.Add(-1)
	})
	return r
}

// Start runs the cache's expiration loop until Stop is called.
func (r *Router) Start() {
	go r.cache.Start()
}

// Stop ends the cache's expiration loop.
func (r *Router) Stop() {
	r.cache.Stop()
}

// RouteTask sends the task to the best worker: a still-valid cached route
// first, otherwise one capability scoring pass, then the fallback chain in
// declared order. The final outcome lands in the cache and analytics; a task
// that never reached any worker records nothing.
func (r *Router) RouteTask(ctx context.Context, task *models.Task) (string, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()[:8]
	}
	key := cacheKey(task)
	attempted := make(map[string]bool)
	attempts := 0
	lastWorker := ""
	var lastErr error

	// Cached route.
	if item := r.cache.Get(key); item != nil {
		name := item.Value()
		if w, ok := r.registry.Get(name); ok && w.Accepting() {
			r.analytics.recordCacheHit()
			attempts++
			attempted[name] = true
			lastWorker = name
			output, err := r.dispatch(ctx, name, task)
			if err == nil {
				r.finishRoute(key, name, task, attempts, "cached route")
				return output, nil
			}
			lastErr = err
			log.Printf("[router] cached route %s failed for task %s: %v", name, task.ID, err)
		} else {
			// The cached target is gone or saturated; drop the entry.
			r.cache.Delete(key)
		}
	}

	// Fresh selection, unless a cached attempt already failed. A selection
	// failure means nothing was attempted, so nothing is recorded.
	if attempts == 0 {
		name, err := r.selectWorker(task)
		if err != nil {
			return "", err
		}
		r.analytics.recordCacheMiss()
		attempts++
		attempted[name] = true
		lastWorker = name
		output, err := r.dispatch(ctx, name, task)
		if err == nil {
			r.finishRoute(key, name, task, attempts, "selected by capability")
			return output, nil
		}
		lastErr = err
		log.Printf("[router] selected worker %s failed for task %s: %v", name, task.ID, err)
	}

	// Fallback chain.
	for _, name := range r.opts.FallbackChain {
		if attempted[name] {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		w, ok := r.registry.Get(name)
		if !ok || !w.Accepting() {
			continue
		}
		attempts++
		attempted[name] = true
		lastWorker = name
		output, err := r.dispatch(ctx, name, task)
		if err == nil {
			r.finishRoute(key, name, task, attempts, "fallback chain")
			return output, nil
		}
		lastErr = err
		log.Printf("[router] fallback %s failed for task %s: %v", name, task.ID, err)
	}

	r.cache.Delete(key)
	r.analytics.recordRoute(lastWorker, false, attempts)
	return "", fmt.Errorf("route task %s: %d attempts failed, last: %w", task.ID, attempts, lastErr)
}

// RouteToWorker bypasses selection and sends the task to the named worker.
func (r *Router) RouteToWorker(ctx context.Context, task *models.Task, name string) (string, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()[:8]
	}
	w, ok := r.registry.Get(name)
	if !ok {
		return "", &registry.WorkerNotFoundError{Name: name}
	}
	if !w.Accepting() {
		return "", &registry.WorkerUnavailableError{
			Name:        name,
			Status:      w.Status,
			CurrentLoad: w.CurrentLoad,
			MaxLoad:     w.MaxLoad,
		}
	}

	output, err := r.dispatch(ctx, name, task)
	if err != nil {
		r.analytics.recordRoute(name, false, 1)
		return "", err
	}
	r.analytics.recordRoute(name, true, 1)
	r.publish(task, name, "direct route")
	return output, nil
}

// RecommendWorker previews the routing decision without executing anything
// or touching analytics. A cached route does not have its TTL refreshed.
func (r *Router) RecommendWorker(task *models.Task) (*models.DelegationDecision, error) {
	key := cacheKey(task)
	if item := r.cache.Get(key, ttlcache.WithDisableTouchOnHit[string, string]()); item != nil {
		name := item.Value()
		if w, ok := r.registry.Get(name); ok && w.Accepting() {
			return &models.DelegationDecision{
				TaskID:     task.ID,
				Worker:     name,
				Reason:     "cached route for similar tasks",
				Confidence: 0.9,
				Strategy:   "cached",
				DecidedAt:  r.clock.Now(),
			}, nil
		}
	}

	avail := r.registry.GetAvailable()
	if len(avail) == 0 {
		return nil, &registry.NoAvailableWorkerError{}
	}
	required := delegation.RequiredTags(task)
	ranked := delegation.RankByCapability(avail, required, r.opts.Rates)
	best := ranked[0]

	reason := "no specific capabilities required"
	if len(required) > 0 {
		reason = fmt.Sprintf("capability overlap %d of %d required tags",
			best.Worker.CapabilityOverlap(required), len(required))
	}
	var alts []string
	for _, c := range ranked[1:] {
		if len(alts) == 3 {
			break
		}
		alts = append(alts, c.Worker.Name)
	}
	return &models.DelegationDecision{
		TaskID:       task.ID,
		Worker:       best.Worker.Name,
		Reason:       reason,
		Confidence:   delegation.Confidence(best.Score),
		Alternatives: alts,
		Strategy:     "capability",
		DecidedAt:    r.clock.Now(),
	}, nil
}

// Analytics returns a snapshot of the routing counters.
func (r *Router) Analytics() Snapshot {
	return r.analytics.Snapshot()
}

// CachedRoutes returns the live cache entry count.
func (r *Router) CachedRoutes() int64 {
	return r.cached.Load()
}

// ClearCache drops every cached route.
func (r *Router) ClearCache() {
	r.cache.DeleteAll()
}

// selectWorker runs one capability/load scoring pass. Tasks with no
// capability requirements go to the default worker when it can take them.
func (r *Router) selectWorker(task *models.Task) (string, error) {
	avail := r.registry.GetAvailable()
	if len(avail) == 0 {
		return "", &registry.NoAvailableWorkerError{}
	}
	required := delegation.RequiredTags(task)
	if len(required) == 0 && r.opts.DefaultWorker != "" {
		for _, w := range avail {
			if w.Name == r.opts.DefaultWorker {
				return w.Name, nil
			}
		}
	}
	ranked := delegation.RankByCapability(avail, required, r.opts.Rates)
	return ranked[0].Worker.Name, nil
}

// dispatch forwards to the registry and folds a failed result into an error.
func (r *Router) dispatch(ctx context.Context, name string, task *models.Task) (string, error) {
	result, err := r.registry.Execute(ctx, name, task)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("worker %s failed task %s: %s", name, task.ID, result.Error)
	}
	return result.Output, nil
}

// finishRoute records a successful route in the cache and analytics.
func (r *Router) finishRoute(key, worker string, task *models.Task, attempts int, how string) {
	r.cache.Set(key, worker, ttlcache.DefaultTTL)
	r.analytics.recordRoute(worker, true, attempts)
	r.publish(task, worker, how)
}

func (r *Router) publish(task *models.Task, worker, how string) {
	if r.events == nil {
		return
	}
	r.events.Publish(events.Event{
		Type:    events.EventTaskRouted,
		TaskID:  task.ID,
		Worker:  worker,
		Message: how,
	})
}

// cacheKey derives the route cache key from the task type and a normalized
// description prefix, so near-identical tasks share a route.
func cacheKey(task *models.Task) string {
	desc := strings.Join(strings.Fields(strings.ToLower(task.Description)), " ")
	if len(desc) > cacheKeyDescLen {
		desc = desc[:cacheKeyDescLen]
	}
	return string(task.Type) + ":" + desc
}
