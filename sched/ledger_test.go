package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClock provides controllable time for ledger tests
type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func newMockClock() *mockClock {
	return &mockClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLedgerConcurrencyCeiling(t *testing.T) {
	ledger := NewLedger(2, 0, 0)

	require.NoError(t, ledger.Admit(0.1, 0))
	require.NoError(t, ledger.Admit(0.1, 0))
	assert.Equal(t, 2, ledger.Running())

	err := ledger.Admit(0.1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency ceiling")

	ledger.Release(0)
	require.NoError(t, ledger.Admit(0.1, 0))
}

func TestLedgerSpendCeiling(t *testing.T) {
	clock := newMockClock()
	ledger := NewLedgerWithClock(10, 5.0, 0, clock.Now)

	require.NoError(t, ledger.Admit(2.0, 0))
	ledger.RecordSpend(2.0)
	ledger.Release(0)

	require.NoError(t, ledger.Admit(2.0, 0))
	ledger.RecordSpend(2.0)
	ledger.Release(0)

	assert.Equal(t, 4.0, ledger.WindowSpend())

	// 4.0 spent + 2.0 estimated would break the $5 ceiling
	err := ledger.Admit(2.0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spend ceiling")

	// A cheaper job still fits
	require.NoError(t, ledger.Admit(0.5, 0))
	ledger.Release(0)
}

func TestLedgerSpendWindowSlides(t *testing.T) {
	clock := newMockClock()
	ledger := NewLedgerWithClock(10, 5.0, 0, clock.Now)

	require.NoError(t, ledger.Admit(4.0, 0))
	ledger.RecordSpend(4.0)
	ledger.Release(0)

	err := ledger.Admit(2.0, 0)
	require.Error(t, err)

	// Old spend ages out of the sliding hour
	clock.Advance(61 * time.Minute)
	assert.Equal(t, 0.0, ledger.WindowSpend())
	require.NoError(t, ledger.Admit(2.0, 0))
}

func TestLedgerZeroCostSpendIgnored(t *testing.T) {
	ledger := NewLedger(10, 5.0, 0)
	ledger.RecordSpend(0)
	ledger.RecordSpend(-1)
	assert.Equal(t, 0.0, ledger.WindowSpend())
}

func TestLedgerMemoryCeiling(t *testing.T) {
	ledger := NewLedger(10, 0, 1024)

	require.NoError(t, ledger.Admit(0.1, 512))
	require.NoError(t, ledger.Admit(0.1, 512))
	assert.Equal(t, 1024, ledger.CommittedMemoryMB())

	err := ledger.Admit(0.1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory ceiling")

	// Zero-footprint jobs are unaffected by the memory dimension
	require.NoError(t, ledger.Admit(0.1, 0))

	ledger.Release(512)
	require.NoError(t, ledger.Admit(0.1, 256))
}

func TestLedgerUnlimitedDimensions(t *testing.T) {
	ledger := NewLedger(1, 0, 0)

	require.NoError(t, ledger.Admit(1000000, 1<<20))
	err := ledger.Admit(0, 0)
	require.Error(t, err, "concurrency still enforced")
}

func TestLedgerReleaseFloorsAtZero(t *testing.T) {
	ledger := NewLedger(2, 0, 100)
	ledger.Release(50)
	ledger.Release(50)
	assert.Equal(t, 0, ledger.Running())
	assert.Equal(t, 0, ledger.CommittedMemoryMB())

	require.NoError(t, ledger.Admit(0.1, 100))
}

func TestLedgerAdmitIsAtomic(t *testing.T) {
	// A job rejected on one dimension must not leak reservations on another.
	ledger := NewLedger(5, 0, 100)

	require.NoError(t, ledger.Admit(0.1, 100))
	err := ledger.Admit(0.1, 1)
	require.Error(t, err)
	assert.Equal(t, 1, ledger.Running(), "rejected admit must not consume a slot")
}
