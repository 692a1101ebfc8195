package component

import (
	"context"
	"errors"
	"sync"

	"github.com/frameport/frameport/internal/shared/id"
)

// Manager tracks live instances. Instances add themselves at construction
// and remove themselves when destroyed.
type Manager struct {
	mu        sync.RWMutex
	instances map[id.InstanceID]*Instance
}

// NewManager creates an empty instance manager.
func NewManager() *Manager {
	return &Manager{instances: make(map[id.InstanceID]*Instance)}
}

// Add registers a live instance.
func (m *Manager) Add(inst *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID()] = inst
}

// Get looks an instance up by ID.
func (m *Manager) Get(instID id.InstanceID) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[instID]
	return inst, ok
}

// Remove drops an instance from tracking.
func (m *Manager) Remove(instID id.InstanceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.instances, instID)
}

// List returns a snapshot of all live instances.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out
}

// Count reports the number of live instances.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// CloseAll closes every live instance with the given reason, collecting
// failures.
func (m *Manager) CloseAll(ctx context.Context, reason CloseReason) error {
	var errs []error
	for _, inst := range m.List() {
		if err := inst.Close(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
