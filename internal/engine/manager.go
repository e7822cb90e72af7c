package engine

import (
	"sync"
)

// SessionManager owns one Controller per learner. Handlers never hold
// controller references across requests; they look the controller up per
// call so teardown is race-free.
type SessionManager struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
	deps        Deps
}

func NewSessionManager(deps Deps) *SessionManager {
	return &SessionManager{
		controllers: make(map[string]*Controller),
		deps:        deps,
	}
}

// GetOrCreate returns the learner's controller, creating an idle one if
// none exists.
func (m *SessionManager) GetOrCreate(learnerID string) *Controller {
	m.mu.RLock()
	if c, ok := m.controllers[learnerID]; ok {
		m.mu.RUnlock()
		return c
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[learnerID]; ok {
		return c
	}
	c := NewController(learnerID, m.deps)
	m.controllers[learnerID] = c
	return c
}

// Controller returns the learner's controller if one exists.
func (m *SessionManager) Controller(learnerID string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[learnerID]
	return c, ok
}

// Remove drops the learner's controller. The caller is responsible for
// abandoning or closing it first.
func (m *SessionManager) Remove(learnerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controllers, learnerID)
}

// Count returns the number of live controllers.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.controllers)
}

// Shutdown cancels every controller's timers. Checkpoints stay in place so
// sessions resume after a restart.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.controllers {
		c.Close()
	}
	m.controllers = make(map[string]*Controller)
}
