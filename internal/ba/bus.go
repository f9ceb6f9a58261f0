package ba

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	dbus "github.com/godbus/dbus/v5"
)

const (
	bluezService         = "org.bluez"
	profileIface         = "org.bluez.Profile1"
	profileManagerIface  = "org.bluez.ProfileManager1"
	mediaEndpointIface   = "org.bluez.MediaEndpoint1"
	mediaIface           = "org.bluez.Media1"
	adapterIface         = "org.bluez.Adapter1"
	deviceIface          = "org.bluez.Device1"
	propsIface           = "org.freedesktop.DBus.Properties"
	objectManagerIface   = "org.freedesktop.DBus.ObjectManager"
)

// addrFromPath extracts the 48-bit device address from a BlueZ object path
// of the form ".../dev_XX_XX_XX_XX_XX_XX[/...]" (spec.md §2), the same
// parsing mgr_linux.go's macFromPath does for RFCOMM device paths.
func addrFromPath(path dbus.ObjectPath) ([6]byte, error) {
	var addr [6]byte
	s := string(path)
	idx := strings.Index(s, "/dev_")
	if idx < 0 {
		return addr, fmt.Errorf("ba: no device segment in path %q", path)
	}
	rest := s[idx+len("/dev_"):]
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 6 {
		return addr, fmt.Errorf("ba: malformed device segment in path %q", path)
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("ba: malformed device segment in path %q: %w", path, err)
		}
		addr[i] = byte(v)
	}
	return addr, nil
}

// adapterIDFromPath extracts the HCI device id from a BlueZ adapter path
// of the form "/org/bluez/hciN".
func adapterIDFromPath(path dbus.ObjectPath) (int, string, error) {
	s := string(path)
	idx := strings.LastIndex(s, "/hci")
	if idx < 0 {
		return 0, "", fmt.Errorf("ba: not an adapter path: %q", path)
	}
	name := s[idx+1:]
	id, err := strconv.Atoi(strings.TrimPrefix(name, "hci"))
	if err != nil {
		return 0, "", fmt.Errorf("ba: malformed adapter path %q: %w", path, err)
	}
	return id, name, nil
}

// Server is the D-Bus-facing half of the daemon. It exports the Profile1
// objects BlueZ delivers RFCOMM connections to and the MediaEndpoint1
// objects BlueZ negotiates A2DP streams through, turning both into
// Transport construction against the shared AdapterRegistry (spec.md §2,
// §4.1).
type Server struct {
	env      *Environment
	adapters *AdapterRegistry

	rfcomm *rfcommProfile

	profilePaths  []dbus.ObjectPath
	endpointPaths []dbus.ObjectPath
}

// NewServer builds a Server bound to env and adapters. Call RegisterHFPAG/
// RegisterHSPAG/RegisterA2DPEndpoint to export objects and register them
// with BlueZ.
func NewServer(env *Environment, adapters *AdapterRegistry) *Server {
	s := &Server{
		env:      env,
		adapters: adapters,
		rfcomm:   &rfcommProfile{env: env, adapters: adapters},
	}
	s.rfcomm.server = s
	return s
}

// ListAdapters returns the object paths of every org.bluez.Adapter1 BlueZ
// currently manages, the same ObjectManager walk listAdapters performs in
// mgr_linux.go.
func ListAdapters(bus *dbus.Conn) ([]dbus.ObjectPath, error) {
	obj := bus.Object(bluezService, dbus.ObjectPath("/"))
	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if call := obj.Call(objectManagerIface+".GetManagedObjects", 0); call.Err != nil {
		return nil, fmt.Errorf("ba: GetManagedObjects: %w", call.Err)
	} else if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("ba: decode GetManagedObjects: %w", err)
	}
	var out []dbus.ObjectPath
	for path, ifaces := range objs {
		if _, ok := ifaces[adapterIface]; ok {
			out = append(out, path)
		}
	}
	return out, nil
}

// AdapterIDFromPath extracts the HCI device id and short name (e.g. "hci0")
// from a BlueZ adapter object path.
func AdapterIDFromPath(path dbus.ObjectPath) (int, string, error) {
	return adapterIDFromPath(path)
}

// RegisterHFPAG exports a Profile1 for the Hands-Free Audio Gateway role and
// registers it with BlueZ's ProfileManager1, mirroring StartServer in
// mgr_linux.go.
func (s *Server) RegisterHFPAG(uuid string) error {
	return s.registerProfile("/org/bluealsa/hfpag", uuid, ProfileHFPAG, map[string]dbus.Variant{
		"Name": dbus.MakeVariant("Hands-Free Audio Gateway"),
	})
}

// RegisterHSPAG exports a Profile1 for the Headset Audio Gateway role.
func (s *Server) RegisterHSPAG(uuid string) error {
	return s.registerProfile("/org/bluealsa/hspag", uuid, ProfileHSPAG, map[string]dbus.Variant{
		"Name": dbus.MakeVariant("Headset Audio Gateway"),
	})
}

func (s *Server) registerProfile(path dbus.ObjectPath, uuid string, profile Profile, opts map[string]dbus.Variant) error {
	if err := s.env.Bus.Export(s.rfcomm, path, profileIface); err != nil {
		return fmt.Errorf("ba: export profile %s: %w", path, err)
	}
	pm := s.env.Bus.Object(bluezService, dbus.ObjectPath("/org/bluez"))
	if call := pm.Call(profileManagerIface+".RegisterProfile", 0, path, uuid, opts); call.Err != nil {
		return fmt.Errorf("ba: RegisterProfile(%s): %w", path, call.Err)
	}
	s.rfcomm.defaultProfile = profile
	s.profilePaths = append(s.profilePaths, path)
	return nil
}

// RegisterA2DPEndpoint exports a MediaEndpoint1 bound to (codec, profile)
// for the given adapter and registers it with that adapter's Media1 object.
// Each call gets its own exported object, since BlueZ's SetConfiguration
// callback carries no indication of which registered endpoint it targets —
// binding codec/profile at registration time instead of re-deriving them
// from the negotiated properties removes that ambiguity entirely.
func (s *Server) RegisterA2DPEndpoint(adapterPath dbus.ObjectPath, uuid string, codec A2DPCodec, codecID byte, profile Profile, capabilities []byte) error {
	path := dbus.ObjectPath(string(adapterPath) + "/bluealsa_a2dp" + strconv.Itoa(int(codecID)) + "_" + strconv.Itoa(int(profile)))
	endpoint := &mediaEndpoint{
		env:      s.env,
		adapters: s.adapters,
		server:   s,
		codec:    codec,
		profile:  profile,
		byPath:   make(map[dbus.ObjectPath]*Transport),
	}
	if err := s.env.Bus.Export(endpoint, path, mediaEndpointIface); err != nil {
		return fmt.Errorf("ba: export endpoint %s: %w", path, err)
	}

	media := s.env.Bus.Object(bluezService, adapterPath)
	opts := map[string]dbus.Variant{
		"UUID":         dbus.MakeVariant(uuid),
		"Codec":        dbus.MakeVariant(codecID),
		"Capabilities": dbus.MakeVariant(capabilities),
	}
	if call := media.Call(mediaIface+".RegisterEndpoint", 0, path, opts); call.Err != nil {
		return fmt.Errorf("ba: RegisterEndpoint(%s): %w", path, call.Err)
	}
	s.endpointPaths = append(s.endpointPaths, path)
	return nil
}

// Unregister reverses every RegisterProfile/RegisterEndpoint call made
// through this Server, best-effort, for daemon shutdown.
func (s *Server) Unregister() {
	pm := s.env.Bus.Object(bluezService, dbus.ObjectPath("/org/bluez"))
	for _, p := range s.profilePaths {
		_ = pm.Call(profileManagerIface+".UnregisterProfile", 0, p).Err
		_ = s.env.Bus.Export(nil, p, profileIface)
	}
	for _, p := range s.endpointPaths {
		_ = s.env.Bus.Export(nil, p, mediaEndpointIface)
	}
}

// resolveDevice resolves (or creates) the Device owning a BlueZ object path,
// reading its Adapter property to locate the owning Adapter first.
func (s *Server) resolveDevice(devicePath dbus.ObjectPath) (*Device, error) {
	addr, err := addrFromPath(devicePath)
	if err != nil {
		return nil, err
	}

	devObj := s.env.Bus.Object(bluezService, devicePath)
	var adapterVar dbus.Variant
	if call := devObj.Call(propsIface+".Get", 0, deviceIface, "Adapter"); call.Err != nil {
		return nil, fmt.Errorf("ba: read Adapter property of %s: %w", devicePath, call.Err)
	} else if err := call.Store(&adapterVar); err != nil {
		return nil, fmt.Errorf("ba: decode Adapter property of %s: %w", devicePath, err)
	}
	adapterPath, _ := adapterVar.Value().(dbus.ObjectPath)

	devID, name, err := adapterIDFromPath(adapterPath)
	if err != nil {
		return nil, err
	}

	return s.adapters.Lookup(devID, name).Device(addr), nil
}

// rfcommProfile implements org.bluez.Profile1 for the HSP/HFP Audio Gateway
// roles: BlueZ hands us an already-connected socket through NewConnection,
// exactly as it does for SPP in mgr_linux.go, except the daemon's RFCOMM
// transport owns the socket directly rather than forwarding it to a reader.
type rfcommProfile struct {
	env            *Environment
	adapters       *AdapterRegistry
	server         *Server
	defaultProfile Profile
}

func (p *rfcommProfile) Release() *dbus.Error { return nil }

func (p *rfcommProfile) Cancel() *dbus.Error { return nil }

func (p *rfcommProfile) RequestDisconnection(_ dbus.ObjectPath) *dbus.Error { return nil }

// NewConnection builds an RFCOMM transport (plus its SCO child) for the
// connecting device and adopts fd as the transport's socket immediately:
// RFCOMM installs no acquire hook (worker.go), the connection IS the
// acquisition (spec.md §4.1, §4.4).
func (p *rfcommProfile) NewConnection(devicePath dbus.ObjectPath, fd dbus.UnixFD, _ map[string]dbus.Variant) *dbus.Error {
	srv := p.server
	if srv == nil {
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"server not ready"}}
	}

	device, err := srv.resolveDevice(devicePath)
	if err != nil {
		p.env.Log.Error("rfcomm: resolve device failed", "path", devicePath, "err", err)
		_ = dbusCloseFd(fd)
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}

	transportPath := string(devicePath) + "/rfcomm"
	t, err := NewRFCOMMTransport(p.env, device, p.defaultProfile, bluezService, transportPath)
	if err != nil {
		p.env.Log.Error("rfcomm: transport construction failed", "err", err)
		_ = dbusCloseFd(fd)
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}

	conn, err := wrapSocketFd(int(fd))
	if err != nil {
		t.Free()
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}
	t.mu.Lock()
	t.socket = conn
	t.rawFd = int(fd)
	t.mu.Unlock()

	p.env.Log.Debug("rfcomm connection accepted", "device", devicePath, "path", transportPath)
	return nil
}

func dbusCloseFd(fd dbus.UnixFD) error {
	return os.NewFile(uintptr(fd), "bt-transport").Close()
}

// mediaEndpoint implements org.bluez.MediaEndpoint1 for a single (codec,
// profile) pair: BlueZ calls SetConfiguration once it has negotiated that
// codec with the peer, handing us the MediaTransport1 object path we later
// Acquire (spec.md §4.4).
type mediaEndpoint struct {
	env      *Environment
	adapters *AdapterRegistry
	server   *Server
	codec    A2DPCodec
	profile  Profile

	mu     sync.Mutex
	byPath map[dbus.ObjectPath]*Transport
}

func (m *mediaEndpoint) SetConfiguration(transport dbus.ObjectPath, properties map[string]dbus.Variant) *dbus.Error {
	srv := m.server
	if srv == nil {
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"server not ready"}}
	}

	devicePath, _ := properties["Device"].Value().(dbus.ObjectPath)
	device, err := srv.resolveDevice(devicePath)
	if err != nil {
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}

	cconfig, _ := properties["Configuration"].Value().([]byte)

	t, err := NewA2DPTransport(m.env, device, m.profile, m.codec, bluezService, string(transport), cconfig)
	if err != nil {
		return &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{err.Error()}}
	}

	m.mu.Lock()
	m.byPath[transport] = t
	m.mu.Unlock()

	return nil
}

func (m *mediaEndpoint) SelectConfiguration(capabilities []byte) ([]byte, *dbus.Error) {
	return capabilities, nil
}

func (m *mediaEndpoint) ClearConfiguration(transport dbus.ObjectPath) *dbus.Error {
	m.mu.Lock()
	t := m.byPath[transport]
	delete(m.byPath, transport)
	m.mu.Unlock()

	if t != nil {
		t.Free()
	}
	return nil
}

func (m *mediaEndpoint) Release() *dbus.Error { return nil }
