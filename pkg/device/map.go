package device

import (
	"sort"
	"sync"

	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"
)

// Map tracks one Switch per device across all accounts in the snapshot. It
// subscribes to the provider and creates switches as devices appear.
type Map struct {
	provider snapshot.Provider
	control  Control
	db       storage.Database

	mu       sync.Mutex
	switches map[string]*Switch
}

// NewMap returns a Map that stays in sync with the provider. Switches for
// devices that disappear from the snapshot are kept but report unavailable.
func NewMap(provider snapshot.Provider, control Control, db storage.Database) *Map {
	m := &Map{
		provider: provider,
		control:  control,
		db:       db,
		switches: make(map[string]*Switch),
	}
	provider.Subscribe(m.handleUpdate)
	m.sync()
	return m
}

// sync creates switches for devices not yet tracked.
func (m *Map) sync() {
	data := m.provider.Data()

	m.mu.Lock()
	defer m.mu.Unlock()
	for accountNumber, snap := range data {
		for _, d := range snap.Devices {
			if _, ok := m.switches[d.ID]; !ok {
				m.switches[d.ID] = NewSwitch(m.provider, m.control, m.db, accountNumber, d.ID)
			}
		}
	}
}

func (m *Map) handleUpdate() {
	m.sync()

	m.mu.Lock()
	switches := make([]*Switch, 0, len(m.switches))
	for _, s := range m.switches {
		switches = append(switches, s)
	}
	m.mu.Unlock()

	for _, s := range switches {
		s.HandleUpdate()
	}
}

// Switch returns the switch for the given device ID, if tracked.
func (m *Map) Switch(deviceID string) (*Switch, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.switches[deviceID]
	return s, ok
}

// ForAccount returns the switches for one account, sorted by device ID.
func (m *Map) ForAccount(accountNumber string) []*Switch {
	m.mu.Lock()
	defer m.mu.Unlock()
	var switches []*Switch
	for _, s := range m.switches {
		if s.accountNumber == accountNumber {
			switches = append(switches, s)
		}
	}
	sort.Slice(switches, func(i, j int) bool {
		return switches[i].deviceID < switches[j].deviceID
	})
	return switches
}

// All returns every tracked switch, sorted by device ID.
func (m *Map) All() []*Switch {
	m.mu.Lock()
	defer m.mu.Unlock()
	switches := make([]*Switch, 0, len(m.switches))
	for _, s := range m.switches {
		switches = append(switches, s)
	}
	sort.Slice(switches, func(i, j int) bool {
		return switches[i].deviceID < switches[j].deviceID
	})
	return switches
}
