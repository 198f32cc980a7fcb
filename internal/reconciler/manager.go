package reconciler

import "sync"

// Factory builds a reconciler for a cart id.
type Factory func(cartID string) *Reconciler

// Manager owns one reconciler per live cart and routes triggers to them.
type Manager struct {
	mu          sync.Mutex
	reconcilers map[string]*Reconciler
	factory     Factory
}

// NewManager creates a manager using factory for unseen carts.
func NewManager(factory Factory) *Manager {
	return &Manager{
		reconcilers: make(map[string]*Reconciler),
		factory:     factory,
	}
}

// Trigger forwards a cart mutation to the cart's reconciler, creating and
// starting it on first sight.
func (m *Manager) Trigger(cartID, verb string) {
	m.get(cartID).Trigger(verb)
}

// ConfirmGiftChoice forwards a shopper's gift picks.
func (m *Manager) ConfirmGiftChoice(cartID, goalKey string, variantIDs []string) {
	m.get(cartID).ConfirmGiftChoice(goalKey, variantIDs)
}

func (m *Manager) get(cartID string) *Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reconcilers[cartID]
	if !ok {
		r = m.factory(cartID)
		m.reconcilers[cartID] = r
		r.Start()
	}
	return r
}

// Close shuts down every reconciler.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.reconcilers {
		r.Close()
	}
	m.reconcilers = make(map[string]*Reconciler)
}
