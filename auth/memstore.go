package auth

import "sync"

// MemStore is an in-process TokenStore + IntentStore, used by cmd/dialer and
// tests. Embedders with real persistence implement the interfaces themselves.
type MemStore struct {
	mu             sync.RWMutex
	token          string
	intent         CallIntent
	hasIntent      bool
	lastAstrologer string
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemStore) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *MemStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

func (m *MemStore) StoreIntent(intent CallIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intent = intent
	m.hasIntent = true
}

func (m *MemStore) PeekIntent() (CallIntent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.intent, m.hasIntent
}

func (m *MemStore) ClearIntent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intent = CallIntent{}
	m.hasIntent = false
}

func (m *MemStore) SetLastAstrologer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAstrologer = id
}

func (m *MemStore) LastAstrologer() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAstrologer, m.lastAstrologer != ""
}
