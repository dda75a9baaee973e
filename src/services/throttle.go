package services

import (
	"sync"
	"time"
)

// sweepEvery is how many Allow calls pass between idle-bucket sweeps.
const sweepEvery = 256

type rateBucket struct {
	tokens     float64
	lastRefill time.Time
}

// Throttle is a per-caller token bucket guarding abuse-prone writes such as
// join requests and reports.
type Throttle struct {
	burst              int
	sustainedPerMinute int

	mu         sync.Mutex
	buckets    map[string]*rateBucket
	sinceSweep int
	sweepEvery int
}

func NewThrottle(burst, sustainedPerMinute int) *Throttle {
	return &Throttle{
		burst:              burst,
		sustainedPerMinute: sustainedPerMinute,
		buckets:            make(map[string]*rateBucket),
		sweepEvery:         sweepEvery,
	}
}

// Allow spends one token from key's bucket.
func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sinceSweep++
	if t.sinceSweep >= t.sweepEvery {
		t.sweep(now)
	}

	bucket, ok := t.buckets[key]
	if !ok {
		bucket = &rateBucket{tokens: float64(t.burst), lastRefill: now}
		t.buckets[key] = bucket
	}
	bucket.tokens = t.refilled(bucket, now)
	bucket.lastRefill = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

func (t *Throttle) refilled(bucket *rateBucket, now time.Time) float64 {
	elapsed := now.Sub(bucket.lastRefill).Seconds()
	if elapsed <= 0 {
		return bucket.tokens
	}
	rate := float64(t.sustainedPerMinute) / 60.0
	return min(float64(t.burst), bucket.tokens+elapsed*rate)
}

// sweep drops buckets that have refilled to burst. A full bucket behaves
// exactly like a missing one. Caller holds mu.
func (t *Throttle) sweep(now time.Time) {
	t.sinceSweep = 0
	for key, bucket := range t.buckets {
		if t.refilled(bucket, now) >= float64(t.burst) {
			delete(t.buckets, key)
		}
	}
}
