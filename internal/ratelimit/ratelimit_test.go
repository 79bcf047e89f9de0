package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterAllow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{name: "burst allows initial requests", rps: 1, burst: 3, calls: 3, wantPass: 3},
		{name: "exceeding burst is refused", rps: 1, burst: 2, calls: 5, wantPass: 2},
		{name: "zero burst refuses everything", rps: 1, burst: 0, calls: 2, wantPass: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rps, tt.burst)
			defer l.Stop()

			passed := 0
			for i := 0; i < tt.calls; i++ {
				if l.Allow("10.0.0.1") {
					passed++
				}
			}
			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestLimiterRefills(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("a"))
}

func TestLimiterEvictsIdleKeys(t *testing.T) {
	l := New(1, 1)
	defer l.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(DefaultIdleTTL / 2)
	l.Allow("fresh")
	now = now.Add(DefaultIdleTTL/2 + time.Second)

	l.evictIdle()
	assert.Equal(t, 1, l.size())

	// An evicted key starts with a full bucket again.
	assert.True(t, l.Allow("old"))
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(1, 1)
	l.Stop()
	l.Stop()
}
