package ba

import (
	"fmt"
	"sync"
)

// BatteryInfo is the battery-level metadata slot an RFCOMM AT-command
// parser (e.g. Apple's XAPL / HFP battery-report vendor extension) may
// populate on a device. It is zeroed when the RFCOMM transport dies
// (spec.md §3, §4.7).
type BatteryInfo struct {
	Present bool
	Level   int // 0-9, HFP battery-level units
}

// VendorExtInfo is the vendor-extension metadata slot (XAPL-style feature
// negotiation) populated the same way as BatteryInfo.
type VendorExtInfo struct {
	Present      bool
	VendorID     uint16
	ProductID    uint16
	FeaturesMask uint32
}

// Device is identified by (adapter, 48-bit address). It owns a mapping from
// daemon-assigned object path to Transport, plus the per-peer metadata the
// RFCOMM command parser populates. Devices outlive their transports and are
// destroyed only when the adapter is freed (spec.md §3).
type Device struct {
	Adapter *Adapter
	Addr    [6]byte

	Battery   BatteryInfo
	VendorExt VendorExtInfo

	mu         sync.Mutex
	transports map[string]*Transport
}

func newDevice(a *Adapter, addr [6]byte) *Device {
	return &Device{
		Adapter:    a,
		Addr:       addr,
		transports: make(map[string]*Transport),
	}
}

// insertTransport adds t under path, failing if the key is already taken —
// the path must be unique within a device (spec.md §3 invariant).
func (d *Device) insertTransport(path string, t *Transport) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.transports[path]; exists {
		return fmt.Errorf("ba: device %s: path %q already in use", d.String(), path)
	}
	d.transports[path] = t
	return nil
}

// Lookup returns the transport registered under path, if any. Per spec.md
// §5, callers must treat the device's map as guarded; Lookup takes the lock
// itself so callers do not need to.
func (d *Device) Lookup(path string) (*Transport, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.transports[path]
	return t, ok
}

// removeTransport detaches path from the map without freeing the key
// string (the Transport owns it) — spec.md §4.7.
func (d *Device) removeTransport(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.transports, path)
}

// TransportCount reports how many transports are currently registered.
func (d *Device) TransportCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// zeroMetadata clears the battery/vendor-extension slots, called from the
// RFCOMM transport destructor (spec.md §4.7).
func (d *Device) zeroMetadata() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Battery = BatteryInfo{}
	d.VendorExt = VendorExtInfo{}
}

// freeAll destroys every transport currently registered on the device, for
// use during adapter teardown.
func (d *Device) freeAll() {
	d.mu.Lock()
	ts := make([]*Transport, 0, len(d.transports))
	for _, t := range d.transports {
		ts = append(ts, t)
	}
	d.mu.Unlock()

	for _, t := range ts {
		t.Free()
	}
}

func (d *Device) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		d.Addr[0], d.Addr[1], d.Addr[2], d.Addr[3], d.Addr[4], d.Addr[5])
}
