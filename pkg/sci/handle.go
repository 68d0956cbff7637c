package sci

// Handle gives a client access to an instance. It is obtained from and
// returned to a Registry.
type Handle struct {
	inst     *Instance
	registry *Registry
	client   string
	released bool // guarded by the registry
}

// Key returns the key of the instance.
func (h *Handle) Key() string {
	return h.inst.key
}

// Client returns the name of the client that obtained the handle.
func (h *Handle) Client() string {
	return h.client
}

// Version returns the cached firmware version.
func (h *Handle) Version() Version {
	return h.inst.Version()
}

// GetRevision queries the firmware version.
func (h *Handle) GetRevision() (Version, error) {
	return h.inst.GetRevision()
}

// Instance returns the underlying instance.
func (h *Handle) Instance() *Instance {
	return h.inst
}
