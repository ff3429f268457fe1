// Package backend is the registry of GPU backends the renderer can run
// on. A backend supplies a gpuabi.Device and gpuabi.Queue; the rest of the
// pipeline is backend-neutral. Backends register themselves from init()
// functions, so importing a backend package is what makes it available:
//
//	import _ "github.com/gogpu/gg/backend/wgpu"
package backend

import (
	"errors"
	"sync"

	"github.com/gogpu/gg/gpuabi"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or failed to initialize.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when device access happens before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// Backend names known to the registry.
const (
	BackendWGPU     = "wgpu"
	BackendSoftware = "software"
)

// Backend supplies GPU access for the renderer core.
type Backend interface {
	// Name returns the backend identifier (e.g. "software", "wgpu").
	Name() string

	// Init initializes the backend. Must be called before Device/Queue.
	Init() error

	// Close releases all backend resources. The backend may not be used
	// afterwards.
	Close()

	// Device returns the backend's gpuabi device.
	Device() gpuabi.Device

	// Queue returns the backend's submission queue.
	Queue() gpuabi.Queue
}

// Factory creates a new backend instance.
type Factory func() Backend

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)

	// Priority order for backend selection; first available wins.
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a backend factory under name, replacing any previous
// registration. Typically called from a backend package's init().
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry. Useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether name has a registered factory.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name, or nil if unregistered.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend by priority (wgpu before
// software), or nil when nothing is registered.
func Default() Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if b := factory(); b != nil {
				return b
			}
		}
	}
	for _, factory := range backends {
		if b := factory(); b != nil {
			return b
		}
	}
	return nil
}
