// Package chatlock serializes state mutations on individual chats.
//
// The store keeps a chat's members, messages, and per-user stats in whole
// JSON columns that are read, mutated in memory, and written back. Without
// per-chat serialization concurrent senders would race on that cycle and lose
// writes. Locking per chat (rather than globally) keeps unrelated chats
// parallel.
package chatlock

import "sync"

// Manager maps chatId to its mutex. The meta-mutex only guards materializing
// new entries; entries are never collected during the process lifetime.
type Manager struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[int64]*sync.Mutex)}
}

// Get returns the mutex for chatID, materializing it on first use. Callers
// hold the returned lock for the full duration of their business logic and
// must never hold two chat locks at once.
func (m *Manager) Get(chatID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[chatID] = lock
	}
	return lock
}
