package registry

import (
	"context"
	"log"

	"github.com/seralin/drover/internal/worker"
	"github.com/seralin/drover/pkg/models"
)

// StartHealthMonitor begins periodic health polling in a background
// goroutine. Calling it while a monitor is already running is a no-op.
func (r *Registry) StartHealthMonitor(ctx context.Context) {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	if r.healthStop != nil {
		return
	}
	r.healthStop = make(chan struct{})
	r.healthDone = make(chan struct{})

	// The ticker is created here, not in the goroutine, so it exists by the
	// time this returns.
	ticker := r.clock.Ticker(r.pollInterval)

	go func(stop, done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.PollHealth(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}(r.healthStop, r.healthDone)
}

// StopHealthMonitor stops the background poller and waits for it to exit.
func (r *Registry) StopHealthMonitor() {
	r.healthMu.Lock()
	stop, done := r.healthStop, r.healthDone
	r.healthStop = nil
	r.healthDone = nil
	r.healthMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// healthProbe is a worker snapshot taken for one polling round.
type healthProbe struct {
	name     string
	status   models.WorkerStatus
	contract worker.Contract
}

// PollHealth checks every worker currently in Available or Error state and
// flips its status on a changed verdict. Busy and Offline workers are left
// alone: Busy resolves through load accounting, Offline through Register.
func (r *Registry) PollHealth(ctx context.Context) {
	r.mu.RLock()
	probes := make([]healthProbe, 0, len(r.order))
	for _, name := range r.order {
		e := r.workers[name]
		if e.worker.Status != models.WorkerStatusAvailable && e.worker.Status != models.WorkerStatusError {
			continue
		}
		probes = append(probes, healthProbe{name: name, status: e.worker.Status, contract: e.contract})
	}
	r.mu.RUnlock()

	for _, p := range probes {
		healthy := r.checkOne(ctx, p.name, p.contract)
		switch {
		case healthy && p.status == models.WorkerStatusError:
			log.Printf("[registry] worker %s recovered", p.name)
			r.setStatus(p.name, models.WorkerStatusAvailable)
		case !healthy && p.status == models.WorkerStatusAvailable:
			log.Printf("[registry] worker %s failed health check", p.name)
			r.setStatus(p.name, models.WorkerStatusError)
		}
	}
}

// checkOne runs a single health check with a timeout, recovering from a
// panicking contract so one bad worker cannot take down the poller.
func (r *Registry) checkOne(ctx context.Context, name string, c worker.Contract) (healthy bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[registry] health check for %s panicked: %v", name, rec)
			healthy = false
		}
	}()
	checkCtx, cancel := context.WithTimeout(ctx, r.checkTimeout)
	defer cancel()
	return c.CheckHealth(checkCtx)
}
