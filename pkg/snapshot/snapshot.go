// Package snapshot owns the refresh loop that keeps the latest view of all
// retailer accounts in memory. Consumers (sensors, switches, the recorder)
// only ever read the most recent snapshot map; it is replaced wholesale on
// every successful refresh.
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/types"
)

// Source fetches and normalizes the account data from the retailer. The real
// API client lives outside this repository; anything satisfying this
// interface can back a Coordinator.
type Source interface {
	// FetchAccounts returns a snapshot per account number.
	FetchAccounts(ctx context.Context) (map[string]types.AccountSnapshot, error)
}

// Provider is the read side handed to sensors and switches.
type Provider interface {
	// Data returns the latest snapshot map, or nil before the first
	// successful refresh. Callers must treat the map as read-only.
	Data() map[string]types.AccountSnapshot

	// LastUpdateSuccess reports whether the most recent refresh succeeded.
	LastUpdateSuccess() bool

	// RequestRefresh asks for an out-of-band refresh. It never blocks.
	RequestRefresh(ctx context.Context)

	// Subscribe registers fn to run after every completed refresh attempt.
	// The returned function unsubscribes.
	Subscribe(fn func()) func()
}

// Coordinator refreshes a Source on a fixed interval and on demand.
type Coordinator struct {
	source   Source
	interval time.Duration

	mu          sync.Mutex
	data        map[string]types.AccountSnapshot
	lastSuccess bool
	subs        map[int]func()
	nextSubID   int

	refreshCh chan struct{}
}

var _ Provider = (*Coordinator)(nil)

// Configured sets up the Coordinator based on flags.
func Configured(src Source) *Coordinator {
	interval := lflag.Duration("refresh-interval", 5*time.Minute, "How often to refresh account snapshots")

	c := NewCoordinator(src, 0)
	lflag.Do(func() {
		c.interval = *interval
	})
	return c
}

// NewCoordinator creates a Coordinator refreshing src on the given interval.
func NewCoordinator(src Source, interval time.Duration) *Coordinator {
	return &Coordinator{
		source:    src,
		interval:  interval,
		subs:      make(map[int]func()),
		refreshCh: make(chan struct{}, 1),
	}
}

// Data implements Provider.
func (c *Coordinator) Data() map[string]types.AccountSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// LastUpdateSuccess implements Provider.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// RequestRefresh implements Provider. The refresh happens on the Run loop;
// if one is already queued this is a no-op.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// Subscribe implements Provider.
func (c *Coordinator) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Refresh performs one synchronous fetch. On success the snapshot map is
// replaced wholesale; on failure the previous data is kept and only the
// success flag drops. Subscribers run after every attempt either way so
// entities can re-evaluate availability.
func (c *Coordinator) Refresh(ctx context.Context) {
	data, err := c.source.FetchAccounts(ctx)

	c.mu.Lock()
	if err != nil {
		c.lastSuccess = false
		log.Ctx(ctx).WarnContext(ctx, "account refresh failed", slog.Any("error", err))
	} else {
		c.data = data
		c.lastSuccess = true
		log.Ctx(ctx).DebugContext(ctx, "account refresh complete", slog.Int("accounts", len(data)))
	}
	subs := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Run refreshes immediately, then on the configured interval and whenever a
// refresh is requested, until the context is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Refresh(ctx)

	interval := c.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "coordinator stopping")
			return nil
		case <-ticker.C:
			c.Refresh(ctx)
		case <-c.refreshCh:
			c.Refresh(ctx)
		}
	}
}
