package snapshot

import (
	"context"
	"sync"

	"github.com/octobridge/octobridge/pkg/types"
)

// Static is a Provider backed by a fixed map. This is primarily used for
// testing entities without running a Coordinator.
type Static struct {
	mu          sync.Mutex
	data        map[string]types.AccountSnapshot
	lastSuccess bool
	refreshes   int
	subs        []func()
}

var _ Provider = (*Static)(nil)

// NewStatic creates a Static provider reporting the given data as a
// successful refresh.
func NewStatic(data map[string]types.AccountSnapshot) *Static {
	return &Static{data: data, lastSuccess: true}
}

// Data implements Provider.
func (s *Static) Data() map[string]types.AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// LastUpdateSuccess implements Provider.
func (s *Static) LastUpdateSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// RequestRefresh implements Provider and only counts the request.
func (s *Static) RequestRefresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
}

// Subscribe implements Provider.
func (s *Static) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	return func() {}
}

// Set replaces the data and marks the last update successful.
func (s *Static) Set(data map[string]types.AccountSnapshot) {
	s.mu.Lock()
	s.data = data
	s.lastSuccess = true
	s.mu.Unlock()
}

// SetLastUpdateSuccess overrides the success flag.
func (s *Static) SetLastUpdateSuccess(ok bool) {
	s.mu.Lock()
	s.lastSuccess = ok
	s.mu.Unlock()
}

// Notify runs all subscribers, simulating a completed refresh.
func (s *Static) Notify() {
	s.mu.Lock()
	subs := append([]func(){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// RefreshRequests returns how many times RequestRefresh was called.
func (s *Static) RefreshRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}
