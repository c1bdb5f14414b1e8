package delegation

import (
	"sync"

	"github.com/seralin/drover/pkg/models"
)

// DefaultHistorySize is the decision capacity kept when none is configured.
const DefaultHistorySize = 500

// History is a fixed-capacity ring of delegation decisions. Once full, each
// append evicts the oldest decision.
type History struct {
	// mu protects buf, next, and size.
	mu   sync.RWMutex
	buf  []models.DelegationDecision
	next int
	size int
}

// NewHistory creates a History holding at most capacity decisions.
// A non-positive capacity falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{buf: make([]models.DelegationDecision, capacity)}
}

// Append records one decision.
func (h *History) Append(d models.DelegationDecision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf[h.next] = d
	h.next = (h.next + 1) % len(h.buf)
	if h.size < len(h.buf) {
		h.size++
	}
}

// Recent returns up to n decisions, newest first.
func (h *History) Recent(n int) []models.DelegationDecision {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || h.size == 0 {
		return nil
	}
	if n > h.size {
		n = h.size
	}
	out := make([]models.DelegationDecision, 0, n)
	idx := h.next - 1
	for len(out) < n {
		if idx < 0 {
			idx = len(h.buf) - 1
		}
		out = append(out, h.buf[idx])
		idx--
	}
	return out
}

// Len returns how many decisions are currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}
