package sci

import (
	"errors"
	"slices"
	"sync"

	"github.com/256dpi/sci/pkg/mbox"
)

// Manager owns the registry of a set of controllers and their mailboxes.
type Manager struct {
	registry *Registry
	opts     []Option
	ctrls    map[string]mbox.Controller
	mutex    sync.Mutex
}

// NewManager creates a new manager. The options are applied to every probed
// instance.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		registry: NewRegistry(),
		opts:     opts,
		ctrls:    make(map[string]mbox.Controller),
	}
}

// Registry returns the registry of the manager.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Probe connects to a controller and registers it. The manager takes
// ownership of the mailbox controller, which is closed if the probe fails.
func (m *Manager) Probe(key string, desc Desc, ctrl mbox.Controller, opts ...Option) (*Instance, error) {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// create instance
	inst, err := NewInstance(key, desc, ctrl, slices.Concat(m.opts, opts)...)
	if err != nil {
		_ = ctrl.Close()
		return nil, err
	}

	// register instance
	err = m.registry.Add(inst)
	if err != nil {
		inst.Close()
		_ = ctrl.Close()
		return nil, err
	}

	// store controller
	m.ctrls[key] = ctrl

	return inst, nil
}

// Remove unregisters and closes the instance with the key. It fails with
// ErrBusy while handles to the instance are held.
func (m *Manager) Remove(key string) error {
	// acquire mutex
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// remove instance
	inst, err := m.registry.Remove(key)
	if err != nil {
		return err
	}

	// close instance
	inst.Close()

	// close controller
	ctrl := m.ctrls[key]
	delete(m.ctrls, key)
	if ctrl != nil {
		return ctrl.Close()
	}

	return nil
}

// Close removes all instances. Busy instances remain registered and are
// reported in the returned error.
func (m *Manager) Close() error {
	var errs []error
	for _, key := range m.registry.Keys() {
		err := m.Remove(key)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
