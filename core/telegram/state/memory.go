package state

import (
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs an in-memory Store. Sessions are created on first
// write and vanish on Clear or process restart.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
	}
}

// session returns the user's session, creating it when missing. Callers must hold mu.
func (m *memoryStore) session(userID int64) *Session {
	sess, ok := m.sessions[userID]
	if !ok {
		sess = &Session{State: StateIdle, Data: make(map[string]string)}
		m.sessions[userID] = sess
	}
	return sess
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryStore) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[userID]; ok {
		return sess.State
	}
	return StateIdle
}

// SetState sets the FSM state for the given user.
func (m *memoryStore) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == "" {
		st = StateIdle
	}
	m.session(userID).State = st
}

// UpdateData shallow-merges values into the user's data bag.
func (m *memoryStore) UpdateData(userID int64, values map[string]string) {
	if len(values) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.session(userID)
	for k, v := range values {
		sess.Data[k] = v
	}
}

// GetData returns a copy of the user's data bag; never nil.
func (m *memoryStore) GetData(userID int64) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(sess.Data))
	for k, v := range sess.Data {
		out[k] = v
	}
	return out
}

// Clear removes the entire session for a user.
func (m *memoryStore) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// InProgress reports whether the user currently has an active FSM state.
func (m *memoryStore) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[userID]
	return ok && sess.State != StateIdle
}
