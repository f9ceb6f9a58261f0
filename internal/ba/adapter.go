package ba

import (
	"fmt"
	"sync"
)

// Adapter identifies a local Bluetooth controller by integer HCI device id
// and short name (e.g. "hci0"). It owns the mapping from remote address to
// Device, guarded by devicesMutex, matching ba-adapter.h's
// `devices_mutex`/`GHashTable *devices`.
type Adapter struct {
	HCIDevID int
	Name     string

	env *Environment

	devicesMutex sync.Mutex
	devices      map[[6]byte]*Device
}

// newAdapter allocates an adapter. Adapters are process-scoped: callers
// should go through an AdapterRegistry rather than constructing one
// directly, except in tests.
func newAdapter(env *Environment, devID int, name string) *Adapter {
	return &Adapter{
		HCIDevID: devID,
		Name:     name,
		env:      env,
		devices:  make(map[[6]byte]*Device),
	}
}

// Device looks up (or creates) the Device for addr under the adapter's
// mutex, matching the "locate or create a device" step of the construction
// flow in spec.md §2.
func (a *Adapter) Device(addr [6]byte) *Device {
	a.devicesMutex.Lock()
	defer a.devicesMutex.Unlock()
	d, ok := a.devices[addr]
	if !ok {
		d = newDevice(a, addr)
		a.devices[addr] = d
	}
	return d
}

// LookupDevice returns the device for addr without creating it.
func (a *Adapter) LookupDevice(addr [6]byte) (*Device, bool) {
	a.devicesMutex.Lock()
	defer a.devicesMutex.Unlock()
	d, ok := a.devices[addr]
	return d, ok
}

// removeDevice drops addr from the device map. Devices are destroyed only
// when the adapter itself is freed (spec.md §3); this is exposed for that
// teardown path, not for per-connection churn.
func (a *Adapter) removeDevice(addr [6]byte) {
	a.devicesMutex.Lock()
	defer a.devicesMutex.Unlock()
	delete(a.devices, addr)
}

// Free releases every device (and transitively every transport) owned by
// the adapter. Safe to call once at process shutdown.
func (a *Adapter) Free() {
	a.devicesMutex.Lock()
	devs := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		devs = append(devs, d)
	}
	a.devices = make(map[[6]byte]*Device)
	a.devicesMutex.Unlock()

	for _, d := range devs {
		d.freeAll()
	}
}

// AdapterRegistry is the process-scoped id->Adapter registry (spec.md §3:
// "Adapters are process-scoped and looked up by id").
type AdapterRegistry struct {
	env *Environment

	mu       sync.Mutex
	adapters map[int]*Adapter
}

// NewAdapterRegistry creates an empty registry bound to env.
func NewAdapterRegistry(env *Environment) *AdapterRegistry {
	return &AdapterRegistry{env: env, adapters: make(map[int]*Adapter)}
}

// Lookup returns the adapter for devID, creating it on first need.
func (r *AdapterRegistry) Lookup(devID int, name string) *Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[devID]
	if !ok {
		a = newAdapter(r.env, devID, name)
		r.adapters[devID] = a
	}
	return a
}

// Get returns the adapter for devID without creating it.
func (r *AdapterRegistry) Get(devID int) (*Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[devID]
	return a, ok
}

// FreeAll frees every registered adapter, for process shutdown.
func (r *AdapterRegistry) FreeAll() {
	r.mu.Lock()
	adapters := make([]*Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.adapters = make(map[int]*Adapter)
	r.mu.Unlock()

	for _, a := range adapters {
		a.Free()
	}
}

func (a *Adapter) String() string {
	return fmt.Sprintf("hci%d(%s)", a.HCIDevID, a.Name)
}
