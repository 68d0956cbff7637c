package sci

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ryanuber/go-glob"
	"github.com/samber/lo"
)

// Client is a consumer of a controller instance.
type Client interface {
	// Name identifies the client in logs.
	Name() string

	// Controller returns the key of the instance the client is bound to or
	// an empty string if it has no binding.
	Controller() string
}

type binding struct {
	name string
	key  string
}

func (b binding) Name() string       { return b.name }
func (b binding) Controller() string { return b.key }

// BindTo returns a client with the specified name bound to an instance key.
func BindTo(name, key string) Client {
	return binding{name: name, key: key}
}

// Registry maps keys to instances and counts their users. A single mutex
// guards membership and all user counts.
type Registry struct {
	instances map[string]*Instance
	mutex     sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]*Instance),
	}
}

// Add registers an instance under its key.
func (r *Registry) Add(inst *Instance) error {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// check existence
	if _, ok := r.instances[inst.key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, inst.key)
	}

	// add instance
	r.instances[inst.key] = inst

	return nil
}

// Lookup returns the instance registered under the key.
func (r *Registry) Lookup(key string) (*Instance, error) {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// get instance
	inst, ok := r.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	return inst, nil
}

// Keys returns the sorted keys of all registered instances.
func (r *Registry) Keys() []string {
	// acquire mutex
	r.mutex.Lock()
	keys := lo.Keys(r.instances)
	r.mutex.Unlock()

	// sort keys
	slices.Sort(keys)

	return keys
}

// Filter returns the sorted keys that match the glob pattern.
func (r *Registry) Filter(pattern string) []string {
	return lo.Filter(r.Keys(), func(key string, _ int) bool {
		return glob.Glob(pattern, key)
	})
}

// Users returns the number of handles held for the instance.
func (r *Registry) Users(key string) int {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// get instance
	inst, ok := r.instances[key]
	if !ok {
		return 0
	}

	return inst.users
}

// GetHandle returns a handle to the instance the client is bound to. It fails
// with ErrNotReady if the instance has not been registered yet. Every handle
// must be returned using PutHandle.
func (r *Registry) GetHandle(client Client) (*Handle, error) {
	// check client
	if client == nil {
		return nil, fmt.Errorf("%w: missing client", ErrInvalidArgument)
	}

	// get binding
	key := client.Controller()
	if key == "" {
		return nil, fmt.Errorf("%w: client %q has no controller binding", ErrNotFound, client.Name())
	}

	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// get instance
	inst, ok := r.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotReady, key)
	}

	// count user
	inst.users++

	return &Handle{
		inst:     inst,
		registry: r,
		client:   client.Name(),
	}, nil
}

// PutHandle releases a handle obtained by GetHandle.
func (r *Registry) PutHandle(h *Handle) error {
	// check handle
	if h == nil {
		return fmt.Errorf("%w: missing handle", ErrInvalidArgument)
	} else if h.registry != r {
		return fmt.Errorf("%w: foreign handle", ErrInvalidArgument)
	}

	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// check state
	if h.released {
		return ErrAlreadyReleased
	}

	// release handle
	h.released = true
	if h.inst.users > 0 {
		h.inst.users--
	} else {
		h.inst.log.WithField("client", h.client).Warn("user count underflow")
	}

	return nil
}

// UseHandle obtains a handle, yields it and releases it again.
func (r *Registry) UseHandle(client Client, fn func(*Handle) error) error {
	// get handle
	h, err := r.GetHandle(client)
	if err != nil {
		return err
	}

	// ensure release
	defer func() {
		_ = r.PutHandle(h)
	}()

	return fn(h)
}

// Remove unregisters the instance with the key. It fails with ErrBusy while
// handles to the instance are held.
func (r *Registry) Remove(key string) (*Instance, error) {
	// acquire mutex
	r.mutex.Lock()
	defer r.mutex.Unlock()

	// get instance
	inst, ok := r.instances[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	// check users
	if inst.users > 0 {
		return nil, fmt.Errorf("%w: %s has %d users", ErrBusy, key, inst.users)
	}

	// remove instance
	delete(r.instances, key)

	return inst, nil
}
