package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	memorySweepEvery = time.Minute
	memoryIdleAfter  = 10 * time.Minute
)

// MemoryBucket is an in-process token bucket. State is per host and lost on
// restart, so it only bounds abuse of a single instance. Entries idle long
// enough to have refilled completely are evicted on a periodic sweep to keep
// the map from growing with every client address ever seen.
type MemoryBucket struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	bucket    map[string]*bucketState
	lastSweep time.Time
	now       func() time.Time
}

type bucketState struct {
	tokens float64
	last   time.Time
}

func NewMemoryBucket(rate float64, burst int) *MemoryBucket {
	return &MemoryBucket{
		rate:   rate,
		burst:  float64(burst),
		bucket: make(map[string]*bucketState),
		now:    time.Now,
	}
}

func (m *MemoryBucket) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= memorySweepEvery {
		for k, st := range m.bucket {
			if now.Sub(st.last) >= memoryIdleAfter {
				delete(m.bucket, k)
			}
		}
		m.lastSweep = now
	}

	st, ok := m.bucket[key]
	if !ok {
		st = &bucketState{tokens: m.burst, last: now}
		m.bucket[key] = st
	} else {
		elapsed := now.Sub(st.last).Seconds()
		if elapsed > 0 {
			st.tokens += elapsed * m.rate
			if st.tokens > m.burst {
				st.tokens = m.burst
			}
			st.last = now
		}
	}

	if st.tokens < 1 {
		return false, nil
	}
	st.tokens--
	return true, nil
}
