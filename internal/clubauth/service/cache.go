package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/clubauth/internal/clubauth/domain"
)

// DefaultInflightWait bounds how long a caller waits on another caller's
// login for the same key.
const DefaultInflightWait = 12 * time.Second

// Key identifies a cache entry. Usernames compare case-insensitively.
type Key struct {
	Service  domain.Service
	Username string
}

// KeyOf normalises a username into a Key.
func KeyOf(service domain.Service, username string) Key {
	return Key{Service: service, Username: strings.ToLower(strings.TrimSpace(username))}
}

func (k Key) String() string { return string(k.Service) + ":" + k.Username }

// Flight is a login in progress. The leader publishes its result through
// SessionCache.Finish; everyone else waits on it.
type Flight struct {
	done    chan struct{}
	session *domain.Session
	err     error
}

// Wait blocks until the leader finishes, ctx ends or timeout passes, and
// returns exactly what the leader got.
func (f *Flight) Wait(ctx context.Context, timeout time.Duration) (*domain.Session, error) {
	if timeout <= 0 {
		timeout = DefaultInflightWait
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-f.done:
		return f.session, f.err
	case <-t.C:
		return nil, domain.ErrInflightTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the leader finishes or ctx ends. The leader uses it
// instead of Wait: its own login is not subject to the in-flight timeout.
func (f *Flight) Result(ctx context.Context) (*domain.Session, error) {
	select {
	case <-f.done:
		return f.session, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CacheOptions configures a SessionCache.
type CacheOptions struct {
	MaxAge  time.Duration
	MaxIdle time.Duration
	Now     func() time.Time
}

// SessionCache maps (service, username) to the live session. One mutex
// guards both the entries and the in-flight markers, so "check, and on a
// miss claim the login" is a single critical section; the network I/O of
// the login itself runs outside it.
type SessionCache struct {
	maxAge  time.Duration
	maxIdle time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[Key]*domain.Session
	flights map[Key]*Flight
}

func NewSessionCache(opts CacheOptions) *SessionCache {
	if opts.MaxAge <= 0 {
		opts.MaxAge = domain.DefaultMaxAge
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = domain.DefaultMaxIdle
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionCache{
		maxAge:  opts.MaxAge,
		maxIdle: opts.MaxIdle,
		now:     opts.Now,
		entries: map[Key]*domain.Session{},
		flights: map[Key]*Flight{},
	}
}

// usableLocked returns the entry for k if usable, evicting it otherwise.
func (c *SessionCache) usableLocked(k Key) *domain.Session {
	s, ok := c.entries[k]
	if !ok {
		return nil
	}
	if s.Usable(c.now(), c.maxAge, c.maxIdle) {
		return s
	}
	s.Invalidate()
	delete(c.entries, k)
	return nil
}

// Get returns a usable session or nil. Expired and stale entries are
// evicted on the way.
func (c *SessionCache) Get(k Key) *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usableLocked(k)
}

// Put replaces any entry for k.
func (c *SessionCache) Put(k Key, s *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = s
}

// Invalidate removes and invalidates the entry for k. It reports whether
// there was one; calling it on an empty key does nothing.
func (c *SessionCache) Invalidate(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[k]
	if !ok {
		return false
	}
	s.Invalidate()
	delete(c.entries, k)
	return true
}

// InvalidateIf removes the entry for k only while it is still s, so a
// failed probe of an old session never evicts a newer login.
func (c *SessionCache) InvalidateIf(k Key, s *domain.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Invalidate()
	if c.entries[k] == s {
		delete(c.entries, k)
	}
}

// Acquire is the single-flight entry point. Exactly one of the results
// is set: a usable cached session; a flight to wait on; or a new flight
// whose caller is the leader and must call Finish.
func (c *SessionCache) Acquire(k Key) (hit *domain.Session, f *Flight, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.usableLocked(k); s != nil {
		return s, nil, false
	}
	if f, ok := c.flights[k]; ok {
		return nil, f, false
	}
	f = &Flight{done: make(chan struct{})}
	c.flights[k] = f
	return nil, f, true
}

// Finish publishes the leader's result: a successful session is cached,
// the in-flight marker is cleared and waiters are released.
func (c *SessionCache) Finish(k Key, f *Flight, s *domain.Session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Waiters dereference the session on success, so a login that produced
	// neither a session nor an error is published as a failure.
	if err == nil && s == nil {
		err = &domain.LoginError{State: domain.StateValidate, Reason: "vendor returned no session", Err: domain.ErrMissingSessionArtifacts}
	}
	if err == nil && s.Authenticated() {
		c.entries[k] = s
	}
	if c.flights[k] == f {
		delete(c.flights, k)
	}
	f.session, f.err = s, err
	if err != nil {
		f.session = nil
	}
	close(f.done)
}

// Sweep evicts every unusable entry and returns how many went.
func (c *SessionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.entries {
		if c.usableLocked(k) == nil {
			n++
		}
	}
	return n
}

// Snapshot returns diagnostics for every entry, sorted by key. Entries
// are reported as they are; nothing is evicted.
func (c *SessionCache) Snapshot() []domain.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]domain.SessionInfo, 0, len(c.entries))
	for _, s := range c.entries {
		out = append(out, s.Info(now, c.maxAge, c.maxIdle))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Service != out[j].Service {
			return out[i].Service < out[j].Service
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out
}

// Info reports s against this cache's age and idle limits.
func (c *SessionCache) Info(s *domain.Session) domain.SessionInfo {
	return s.Info(c.now(), c.maxAge, c.maxIdle)
}

// Counts returns the number of cached sessions per service.
func (c *SessionCache) Counts() map[domain.Service]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := map[domain.Service]int{}
	for k := range c.entries {
		out[k.Service]++
	}
	return out
}

// InFlight reports whether a login for k is running.
func (c *SessionCache) InFlight(k Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.flights[k]
	return ok
}
