package sched

import (
	"sync"
	"time"

	"github.com/HollandsP/Evergreen-sub003/errors"
)

// Ledger tracks the scheduler's resource commitments: concurrent slots,
// estimated working memory, and spend over a sliding one-hour window.
// A ceiling of zero means unlimited for that dimension.
type Ledger struct {
	maxConcurrent  int
	maxCostPerHour float64
	maxMemoryMB    int

	mu       sync.Mutex
	running  int
	memoryMB int
	spends   []spendRecord
	timeNow  func() time.Time // Injectable for testing
}

type spendRecord struct {
	at   time.Time
	cost float64
}

const spendWindow = time.Hour

// NewLedger creates a ledger with real time.
func NewLedger(maxConcurrent int, maxCostPerHour float64, maxMemoryMB int) *Ledger {
	return NewLedgerWithClock(maxConcurrent, maxCostPerHour, maxMemoryMB, time.Now)
}

// NewLedgerWithClock creates a ledger with injectable clock (for testing)
func NewLedgerWithClock(maxConcurrent int, maxCostPerHour float64, maxMemoryMB int, timeNow func() time.Time) *Ledger {
	return &Ledger{
		maxConcurrent:  maxConcurrent,
		maxCostPerHour: maxCostPerHour,
		maxMemoryMB:    maxMemoryMB,
		timeNow:        timeNow,
	}
}

// Admit reserves a slot for a job about to run. It checks every ceiling
// against the job's estimates and reserves atomically: either all dimensions
// are committed or none are. Returns an error naming the exhausted dimension.
func (l *Ledger) Admit(costEstimate float64, memoryMB int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.pruneSpends(now)

	if l.maxConcurrent > 0 && l.running >= l.maxConcurrent {
		return errors.Newf("concurrency ceiling reached: %d jobs running (limit: %d)",
			l.running, l.maxConcurrent)
	}
	if l.maxCostPerHour > 0 {
		spent := l.windowSpend()
		if spent+costEstimate > l.maxCostPerHour {
			err := errors.Newf("hourly spend ceiling reached: $%.2f spent, $%.2f estimated (limit: $%.2f)",
				spent, costEstimate, l.maxCostPerHour)
			return errors.WithHint(err, "ceiling resets as spend records age out of the sliding hour")
		}
	}
	if l.maxMemoryMB > 0 && l.memoryMB+memoryMB > l.maxMemoryMB {
		return errors.Newf("memory ceiling reached: %dMB committed, %dMB requested (limit: %dMB)",
			l.memoryMB, memoryMB, l.maxMemoryMB)
	}

	l.running++
	l.memoryMB += memoryMB
	return nil
}

// Release returns a job's slot and memory reservation. Call exactly once per
// successful Admit, regardless of how the job ended.
func (l *Ledger) Release(memoryMB int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running > 0 {
		l.running--
	}
	l.memoryMB -= memoryMB
	if l.memoryMB < 0 {
		l.memoryMB = 0
	}
}

// RecordSpend adds actual cost to the sliding window. Zero-cost completions
// (cache hits) are skipped so the window holds only real provider charges.
func (l *Ledger) RecordSpend(cost float64) {
	if cost <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeNow()
	l.pruneSpends(now)
	l.spends = append(l.spends, spendRecord{at: now, cost: cost})
}

// Running returns the number of currently admitted jobs.
func (l *Ledger) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// WindowSpend returns the total spend inside the current sliding hour.
func (l *Ledger) WindowSpend() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneSpends(l.timeNow())
	return l.windowSpend()
}

// CommittedMemoryMB returns the sum of memory estimates for admitted jobs.
func (l *Ledger) CommittedMemoryMB() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.memoryMB
}

// pruneSpends drops spend records older than the window. Must be called with
// lock held. Records are appended in time order, so expired ones sit at the front.
func (l *Ledger) pruneSpends(now time.Time) {
	cutoff := now.Add(-spendWindow)

	expired := 0
	for _, rec := range l.spends {
		if rec.at.After(cutoff) {
			break
		}
		expired++
	}
	if expired > 0 {
		l.spends = append(l.spends[:0], l.spends[expired:]...)
	}
}

// windowSpend sums the retained records. Must be called with lock held.
func (l *Ledger) windowSpend() float64 {
	var total float64
	for _, rec := range l.spends {
		total += rec.cost
	}
	return total
}
