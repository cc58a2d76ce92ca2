package module

import "sync"

// process-wide port registry filled during bootstrap, so late-wired pieces
// (handlers registered after module construction) can look collaborators up
// by module name instead of threading every port through main
var (
	regMu sync.RWMutex
	reg   = map[string]any{}
)

// Register publishes a module's port bundle under its name
func Register(name string, ports any) {
	regMu.Lock()
	reg[name] = ports
	regMu.Unlock()
}

// PortsAs looks up the bundle registered for name and asserts it to T
func PortsAs[T any](name string) (T, bool) {
	regMu.RLock()
	v, ok := reg[name]
	regMu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Reset clears the registry between tests
func Reset() {
	regMu.Lock()
	reg = map[string]any{}
	regMu.Unlock()
}
