package subscriber

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager is the set of chats receiving alerts. Every change is persisted
// outside the set lock, so a slow store never blocks readers.
type Manager struct {
	mu      sync.Mutex
	chats   map[int64]struct{}
	version uint64

	saveMu sync.Mutex
	saved  uint64

	store  Store
	logger *logrus.Logger
}

// NewManager loads the subscriber set from store, starting empty on failure.
func NewManager(store Store, logger *logrus.Logger) *Manager {
	m := &Manager{chats: make(map[int64]struct{}), store: store, logger: logger}
	ids, err := store.Load()
	if err != nil {
		logger.WithError(err).Warn("Failed to load subscribers, starting empty")
		return m
	}
	for _, id := range ids {
		m.chats[id] = struct{}{}
	}
	logger.WithField("subscribers", len(m.chats)).Info("Subscribers loaded")
	return m
}

// Add subscribes a chat. Returns false if it was already subscribed.
func (m *Manager) Add(chatID int64) bool {
	m.mu.Lock()
	_, exists := m.chats[chatID]
	m.chats[chatID] = struct{}{}
	ids, version := m.snapshot()
	m.mu.Unlock()

	m.save(ids, version)
	return !exists
}

// Remove unsubscribes a chat. Returns false if it wasn't subscribed.
func (m *Manager) Remove(chatID int64) bool {
	m.mu.Lock()
	_, exists := m.chats[chatID]
	delete(m.chats, chatID)
	ids, version := m.snapshot()
	m.mu.Unlock()

	m.save(ids, version)
	return exists
}

func (m *Manager) Contains(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chats[chatID]
	return ok
}

// List returns the subscribed chat IDs in ascending order.
func (m *Manager) List() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chats)
}

func (m *Manager) sorted() []int64 {
	ids := make([]int64, 0, len(m.chats))
	for id := range m.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// snapshot must be called with mu held.
func (m *Manager) snapshot() ([]int64, uint64) {
	m.version++
	return m.sorted(), m.version
}

// save writes a snapshot unless a newer one has already been written.
func (m *Manager) save(ids []int64, version uint64) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if version <= m.saved {
		return
	}
	m.saved = version
	if err := m.store.Save(ids); err != nil {
		m.logger.WithError(err).Error("Failed to save subscribers")
	}
}
