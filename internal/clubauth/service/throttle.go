package service

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/clubauth/pkg/vendorhttp"
	"golang.org/x/time/rate"
)

// DefaultCooldown is the minimum spacing of login attempts per key.
const DefaultCooldown = 5 * time.Second

// Throttle spaces login attempts per key with one token bucket each:
// rate one per cooldown, burst one. Reserving books the slot when the
// attempt starts, so concurrent callers queue behind each other.
type Throttle struct {
	cooldown time.Duration
	now      func() time.Time
	sleep    vendorhttp.SleepFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle creates a throttle. now and sleep may be nil.
func NewThrottle(cooldown time.Duration, now func() time.Time, sleep vendorhttp.SleepFunc) *Throttle {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = vendorhttp.Sleep
	}
	return &Throttle{
		cooldown: cooldown,
		now:      now,
		sleep:    sleep,
		limiters: map[string]*rate.Limiter{},
	}
}

func (t *Throttle) limiter(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	// One bucket per key, created on first use and dropped again by Prune.
	l, ok := t.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(t.cooldown), 1)
		t.limiters[key] = l
	}
	return l
}

// Reserve books the next attempt for key and returns how long the caller
// must wait before it.
func (t *Throttle) Reserve(key string) time.Duration {
	now := t.now()
	d := t.limiter(key).ReserveN(now, 1).DelayFrom(now)

	// The limiter counts tokens in float64 and truncates the delay, which
	// can land a nanosecond short of the cooldown. Round up to the next
	// millisecond so attempts are never closer than the cooldown.
	if r := d % time.Millisecond; r > 0 {
		d += time.Millisecond - r
	}
	return d
}

// Wait reserves and sleeps. The reservation stands even if ctx ends
// first; an abandoned attempt still counts.
func (t *Throttle) Wait(ctx context.Context, key string) (time.Duration, error) {
	d := t.Reserve(key)
	if d <= 0 {
		return 0, nil
	}
	return d, t.sleep(ctx, d)
}

// Prune forgets keys whose bucket has refilled.
func (t *Throttle) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	n := 0
	for k, l := range t.limiters {
		if l.TokensAt(now) >= 1 {
			delete(t.limiters, k)
			n++
		}
	}
	return n
}
