package allocator

import (
	"sync"
	"sync/atomic"
)

// Ledger tracks how many claims each member holds during planning.
// Matching only reads counts; accepting a match reserves capacity.
type Ledger interface {
	// Count returns the number of claims currently held by the member
	Count(memberID string) int

	// TryReserve increments the member's count if it is below capacity.
	// Returns false without changing anything when the member is full.
	TryReserve(memberID string, capacity int) bool

	// Release gives back one reserved slot
	Release(memberID string)
}

// WorkloadLedger is the default single-run ledger. Not safe for concurrent use.
type WorkloadLedger struct {
	counts map[string]int
}

// NewWorkloadLedger creates a ledger seeded with a copy of the snapshot
func NewWorkloadLedger(snapshot map[string]int) *WorkloadLedger {
	counts := make(map[string]int, len(snapshot))
	for id, count := range snapshot {
		counts[id] = count
	}
	return &WorkloadLedger{counts: counts}
}

func (l *WorkloadLedger) Count(memberID string) int {
	return l.counts[memberID]
}

func (l *WorkloadLedger) TryReserve(memberID string, capacity int) bool {
	if l.counts[memberID] >= capacity {
		return false
	}
	l.counts[memberID]++
	return true
}

func (l *WorkloadLedger) Release(memberID string) {
	if l.counts[memberID] > 0 {
		l.counts[memberID]--
	}
}

// Snapshot returns a copy of the current counts
func (l *WorkloadLedger) Snapshot() map[string]int {
	snapshot := make(map[string]int, len(l.counts))
	for id, count := range l.counts {
		snapshot[id] = count
	}
	return snapshot
}

// SharedLedger reserves capacity with a per-member compare-and-increment so that
// concurrent planning runs sharing it can never both take the last slot.
type SharedLedger struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

// NewSharedLedger creates a shared ledger seeded from the snapshot
func NewSharedLedger(snapshot map[string]int) *SharedLedger {
	l := &SharedLedger{counts: make(map[string]*atomic.Int64, len(snapshot))}
	for id, count := range snapshot {
		c := &atomic.Int64{}
		c.Store(int64(count))
		l.counts[id] = c
	}
	return l
}

func (l *SharedLedger) counter(memberID string) *atomic.Int64 {
	l.mu.RLock()
	c, ok := l.counts[memberID]
	l.mu.RUnlock()
	if ok {
		return c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok = l.counts[memberID]; ok {
		return c
	}
	c = &atomic.Int64{}
	l.counts[memberID] = c
	return c
}

func (l *SharedLedger) Count(memberID string) int {
	return int(l.counter(memberID).Load())
}

func (l *SharedLedger) TryReserve(memberID string, capacity int) bool {
	c := l.counter(memberID)
	for {
		current := c.Load()
		if current >= int64(capacity) {
			return false
		}
		if c.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *SharedLedger) Release(memberID string) {
	c := l.counter(memberID)
	for {
		current := c.Load()
		if current <= 0 {
			return
		}
		if c.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// Snapshot returns a copy of the current counts
func (l *SharedLedger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	snapshot := make(map[string]int, len(l.counts))
	for id, c := range l.counts {
		snapshot[id] = int(c.Load())
	}
	return snapshot
}
