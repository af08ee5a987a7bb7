package lifecycle

import (
	"sync"

	"EmberFM/core/auth"
	"EmberFM/model"
)

// Manager hands out one Controller per signed-in principal. Each
// controller binds its own gateway subscription, scoped to its lifetime;
// the manager only caches and prunes them.
type Manager struct {
	gateway *auth.Gateway
	factory func() *Controller

	// OnCreate, when set, runs for every freshly built controller before
	// its first principal event; the event hub hooks state listeners here.
	OnCreate func(principalID string, c *Controller)

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager creates a manager. factory builds an unbound controller; the
// manager binds and starts it on first use.
func NewManager(gateway *auth.Gateway, factory func() *Controller) *Manager {
	return &Manager{
		gateway:     gateway,
		factory:     factory,
		controllers: make(map[string]*Controller),
	}
}

// Get returns the controller for a principal, creating and priming it on
// first sight (e.g. a valid token arriving after a server restart).
func (m *Manager) Get(principal *model.Principal) *Controller {
	m.mu.Lock()
	ctrl, ok := m.controllers[principal.ID]
	if !ok {
		ctrl = m.factory()
		if m.OnCreate != nil {
			m.OnCreate(principal.ID, ctrl)
		}
		ctrl.Bind(m.gateway, principal.ID)
		m.controllers[principal.ID] = ctrl
	}
	m.mu.Unlock()

	if !ok {
		// Arm the bounded wait before the first principal event; if the
		// event is somehow never delivered the controller falls back to
		// the auth forms instead of hanging in Loading.
		ctrl.Start()
		ctrl.SetPrincipal(principal)
	}
	return ctrl
}

// peek returns the controller for a principal id without creating one.
func (m *Manager) peek(principalID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controllers[principalID]
}

// Remove drops a principal's controller after sign-out.
func (m *Manager) Remove(principalID string) {
	m.mu.Lock()
	ctrl := m.controllers[principalID]
	delete(m.controllers, principalID)
	m.mu.Unlock()
	if ctrl != nil {
		ctrl.Close()
	}
}

// Close tears down every controller.
func (m *Manager) Close() {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		ctrls = append(ctrls, c)
	}
	m.controllers = make(map[string]*Controller)
	m.mu.Unlock()
	for _, c := range ctrls {
		c.Close()
	}
}
