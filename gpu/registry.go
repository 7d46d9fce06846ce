package gpu

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Opener acquires a device from a backend.
type Opener func(ctx context.Context) (Device, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes a backend available under name. It panics if name is
// registered twice.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("gpu: Register called twice for backend " + name)
	}
	registry[name] = open
}

// Open acquires a device from the named backend. Failures are device
// errors and are never retried.
func Open(ctx context.Context, name string) (Device, error) {
	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, NewDeviceError("Open", fmt.Sprintf("unknown backend %q", name), nil)
	}
	return open(ctx)
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
