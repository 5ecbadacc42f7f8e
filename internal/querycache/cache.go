// Package querycache is an in-process store of asynchronously fetched values.
//
// Entries are addressed by a composite Key and carry a staleness window.
// Reads inside the window are served from memory; reads past it return the
// last value at once and refresh it in the background. Concurrent reads of
// one key share a single fetch. Writers outside the fetch path (SetData,
// Update, Invalidate, Remove) bump the entry's version, and a fetch that
// started under an older version never overwrites their result.
//
// A Cache is an ordinary value: construct one per application root with New
// and pass it to the components that need it.
package querycache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// StaleNever keeps an entry fresh until it is invalidated.
const StaleNever time.Duration = -1

// DefaultStaleTime applies when neither the query nor the cache sets one.
const DefaultStaleTime = time.Minute

// ErrTypeMismatch is returned when an entry holds a value of a different type
// than the caller asked for.
var ErrTypeMismatch = errors.New("cached value has a different type")

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Options configures a Cache.
type Options struct {
	DefaultStaleTime time.Duration
	Retry            RetryPolicy
	// Now replaces time.Now, for tests.
	Now    func() time.Time
	Logger *slog.Logger
}

// QueryOptions tunes a single read.
type QueryOptions struct {
	// StaleTime is how long a fetched value stays fresh. Zero uses the cache
	// default; StaleNever disables expiry.
	StaleTime time.Duration
	// Retry overrides the cache's retry policy for this read.
	Retry *RetryPolicy
}

// Event describes a change to one entry.
type Event struct {
	Key         Key
	Status      Status
	Invalidated bool
	Removed     bool
}

// Snapshot is a read-only copy of an entry's state.
type Snapshot struct {
	Key         Key
	Data        any
	HasData     bool
	Status      Status
	Err         error
	UpdatedAt   time.Time
	Invalidated bool
	Fetching    bool
	Version     uint64
}

type entry struct {
	key         Key
	parts       []string
	data        any
	hasData     bool
	status      Status
	err         error
	updatedAt   time.Time
	lastAccess  time.Time
	staleTime   time.Duration
	invalidated bool
	fetching    bool
	version     uint64
}

func (e *entry) stale(now time.Time) bool {
	if e.invalidated {
		return true
	}
	if e.staleTime == StaleNever {
		return false
	}
	return !now.Before(e.updatedAt.Add(e.staleTime))
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:         e.key,
		Data:        e.data,
		HasData:     e.hasData,
		Status:      e.status,
		Err:         e.err,
		UpdatedAt:   e.updatedAt,
		Invalidated: e.invalidated,
		Fetching:    e.fetching,
		Version:     e.version,
	}
}

type subscription struct {
	prefix []string
	fn     func(Event)
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	subs    map[int]*subscription
	nextSub int
	closed  bool

	flights singleflight.Group
	bg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	staleTime time.Duration
	retry     RetryPolicy
	now       func() time.Time
	logger    *slog.Logger
}

// New returns an empty Cache. Zero-valued Options fields take defaults:
// one-minute staleness, DefaultRetryPolicy, time.Now and slog.Default.
func New(opts Options) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:   make(map[string]*entry),
		subs:      make(map[int]*subscription),
		ctx:       ctx,
		cancel:    cancel,
		staleTime: opts.DefaultStaleTime,
		retry:     opts.Retry,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if c.staleTime == 0 {
		c.staleTime = DefaultStaleTime
	}
	if c.retry.Attempts == 0 {
		c.retry = DefaultRetryPolicy()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Close stops background refetches and waits for them to return.
// Reads after Close still work but never revalidate in the background.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.bg.Wait()
}

// Fetch returns the value for key, calling fn only when needed:
//   - fresh entry: cached value, no call;
//   - stale entry with a value: cached value now, refetch in the background;
//   - no value yet: one call shared by every concurrent reader of key.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error), opts QueryOptions) (T, error) {
	var zero T

	parts, err := key.normalize()
	if err != nil {
		return zero, fmt.Errorf("querycache.Fetch: %w", err)
	}
	eid := id(parts)
	now := c.now()
	policy := c.retry
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	fetcher := func(ctx context.Context) (any, error) { return fn(ctx) }

	c.mu.Lock()
	e := c.entryLocked(eid, key, parts)
	e.lastAccess = now
	if opts.StaleTime != 0 {
		e.staleTime = opts.StaleTime
	}
	if e.hasData {
		data, ok := e.data.(T)
		if !ok {
			c.mu.Unlock()
			return zero, fmt.Errorf("querycache.Fetch %s: %w", key, ErrTypeMismatch)
		}
		stale := e.stale(now)
		version := e.version
		c.mu.Unlock()
		if stale {
			c.revalidate(eid, version, fetcher, policy)
		}
		return data, nil
	}
	version := e.version
	c.mu.Unlock()

	v, err := c.fetch(ctx, context.WithoutCancel(ctx), eid, version, fetcher, policy)
	if err != nil {
		return zero, err
	}
	data, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("querycache.Fetch %s: %w", key, ErrTypeMismatch)
	}
	return data, nil
}

// Get returns the cached value for key without fetching.
// ok is false when there is no value or it has another type.
func Get[T any](c *Cache, key Key) (T, bool) {
	var zero T
	parts, err := key.normalize()
	if err != nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[id(parts)]
	if !found || !e.hasData {
		return zero, false
	}
	data, ok := e.data.(T)
	return data, ok
}

// SetData writes v as the fresh value of key, creating the entry if needed.
// A QueryOptions argument sets the entry's staleness window.
func SetData[T any](c *Cache, key Key, v T, opts ...QueryOptions) error {
	parts, err := key.normalize()
	if err != nil {
		return fmt.Errorf("querycache.SetData: %w", err)
	}
	c.mu.Lock()
	e := c.entryLocked(id(parts), key, parts)
	if len(opts) > 0 {
		e.staleTime = c.resolveStaleTime(opts[0].StaleTime)
	}
	c.writeLocked(e, v)
	ev, subs := c.eventLocked(e, Event{Key: e.key, Status: e.status})
	c.mu.Unlock()
	notify(subs, ev)
	return nil
}

// Update replaces the value of key with fn(old) if the entry currently holds a
// value of type T. It reports whether a patch was applied; an empty entry is
// left untouched.
func Update[T any](c *Cache, key Key, fn func(T) T) bool {
	parts, err := key.normalize()
	if err != nil {
		return false
	}
	c.mu.Lock()
	e, found := c.entries[id(parts)]
	if !found || !e.hasData {
		c.mu.Unlock()
		return false
	}
	old, ok := e.data.(T)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.writeLocked(e, fn(old))
	ev, subs := c.eventLocked(e, Event{Key: e.key, Status: e.status})
	c.mu.Unlock()
	notify(subs, ev)
	return true
}

// Invalidate marks every entry under prefix stale so its next read refetches.
// In-flight fetches for those entries will not write their results.
// It returns the number of entries affected.
func (c *Cache) Invalidate(prefix Key) int {
	pp, err := prefix.normalize()
	if err != nil {
		return 0
	}
	type pending struct {
		ev   Event
		subs []func(Event)
	}
	var out []pending

	c.mu.Lock()
	for _, e := range c.entries {
		if !hasPrefix(e.parts, pp) {
			continue
		}
		e.invalidated = true
		e.version++
		ev, subs := c.eventLocked(e, Event{Key: e.key, Status: e.status, Invalidated: true})
		out = append(out, pending{ev, subs})
	}
	c.mu.Unlock()

	for _, p := range out {
		notify(p.subs, p.ev)
	}
	return len(out)
}

// Remove drops every entry under prefix and returns how many were removed.
func (c *Cache) Remove(prefix Key) int {
	pp, err := prefix.normalize()
	if err != nil {
		return 0
	}
	type pending struct {
		ev   Event
		subs []func(Event)
	}
	var out []pending

	c.mu.Lock()
	for k, e := range c.entries {
		if !hasPrefix(e.parts, pp) {
			continue
		}
		delete(c.entries, k)
		e.version++
		ev, subs := c.eventLocked(e, Event{Key: e.key, Status: StatusIdle, Removed: true})
		out = append(out, pending{ev, subs})
	}
	c.mu.Unlock()

	for _, p := range out {
		notify(p.subs, p.ev)
	}
	return len(out)
}

// Peek returns a snapshot of key's entry without touching it.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	parts, err := key.normalize()
	if err != nil {
		return Snapshot{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id(parts)]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Subscribe calls fn after every change to an entry under prefix. fn runs on
// the goroutine that made the change and must not block. The returned func
// cancels the subscription.
func (c *Cache) Subscribe(prefix Key, fn func(Event)) (unsubscribe func()) {
	pp, err := prefix.normalize()
	if err != nil {
		return func() {}
	}
	c.mu.Lock()
	n := c.nextSub
	c.nextSub++
	c.subs[n] = &subscription{prefix: pp, fn: fn}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, n)
			c.mu.Unlock()
		})
	}
}

// GC removes entries that no subscription covers, that are not being
// fetched, and that nobody has read for at least maxIdle.
func (c *Cache) GC(maxIdle time.Duration) int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.fetching || c.observedLocked(e.parts) {
			continue
		}
		if now.Sub(e.lastAccess) < maxIdle {
			continue
		}
		delete(c.entries, k)
		removed++
	}
	return removed
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ---- internals -------------------------------------------------------------

func (c *Cache) resolveStaleTime(d time.Duration) time.Duration {
	if d == 0 {
		return c.staleTime
	}
	return d
}

func (c *Cache) entryLocked(eid string, key Key, parts []string) *entry {
	e, ok := c.entries[eid]
	if !ok {
		e = &entry{
			key:        append(Key(nil), key...),
			parts:      parts,
			status:     StatusIdle,
			staleTime:  c.staleTime,
			lastAccess: c.now(),
		}
		c.entries[eid] = e
	}
	return e
}

func (c *Cache) writeLocked(e *entry, v any) {
	e.data = v
	e.hasData = true
	e.status = StatusSuccess
	e.err = nil
	e.updatedAt = c.now()
	e.invalidated = false
	e.version++
}

// fetch runs fn at most once per (entry, version) no matter how many callers
// arrive while it is in flight. wait bounds how long this caller waits; run
// is the context the shared call executes under.
func (c *Cache) fetch(wait, run context.Context, eid string, version uint64, fn func(context.Context) (any, error), policy RetryPolicy) (any, error) {
	flight := eid + "#" + strconv.FormatUint(version, 10)
	ch := c.flights.DoChan(flight, func() (any, error) {
		c.begin(eid, version)
		v, err := policy.run(run, fn)
		c.settle(eid, version, v, err)
		return v, err
	})

	select {
	case <-wait.Done():
		return nil, wait.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Cache) revalidate(eid string, version uint64, fn func(context.Context) (any, error), policy RetryPolicy) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.bg.Done()
		if _, err := c.fetch(c.ctx, c.ctx, eid, version, fn, policy); err != nil && c.ctx.Err() == nil {
			c.logger.Warn("background refetch failed", "key", eid, "error", err)
		}
	}()
}

func (c *Cache) begin(eid string, version uint64) {
	c.mu.Lock()
	e, ok := c.entries[eid]
	if !ok || e.version != version {
		c.mu.Unlock()
		return
	}
	e.fetching = true
	if !e.hasData {
		e.status = StatusPending
	}
	ev, subs := c.eventLocked(e, Event{Key: e.key, Status: e.status})
	c.mu.Unlock()
	notify(subs, ev)
}

// settle records a fetch outcome unless the entry changed since the fetch
// began, in which case the result is dropped.
func (c *Cache) settle(eid string, version uint64, v any, err error) {
	c.mu.Lock()
	e, ok := c.entries[eid]
	if !ok {
		c.mu.Unlock()
		return
	}
	if e.version != version {
		e.fetching = false
		if !e.hasData && e.status == StatusPending {
			e.status = StatusIdle
		}
		c.mu.Unlock()
		c.logger.Debug("dropping superseded fetch result", "key", eid)
		return
	}

	e.fetching = false
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.data = v
		e.hasData = true
		e.status = StatusSuccess
		e.err = nil
		e.updatedAt = c.now()
		e.invalidated = false
	}
	ev, subs := c.eventLocked(e, Event{Key: e.key, Status: e.status})
	c.mu.Unlock()
	notify(subs, ev)
}

func (c *Cache) eventLocked(e *entry, ev Event) (Event, []func(Event)) {
	var fns []func(Event)
	for _, s := range c.subs {
		if hasPrefix(e.parts, s.prefix) {
			fns = append(fns, s.fn)
		}
	}
	return ev, fns
}

func (c *Cache) observedLocked(parts []string) bool {
	for _, s := range c.subs {
		if hasPrefix(parts, s.prefix) {
			return true
		}
	}
	return false
}

func notify(fns []func(Event), ev Event) {
	for _, fn := range fns {
		fn(ev)
	}
}
