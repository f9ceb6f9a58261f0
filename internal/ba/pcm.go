package ba

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// PCMDirection says which side of the named pipe this endpoint's worker
// owns: a capture endpoint is written by the worker and read by the local
// client; a playback endpoint is read by the worker and written by the
// local client (spec.md §3, §6).
type PCMDirection int

const (
	PCMPlayback PCMDirection = iota
	PCMCapture
)

// PCMEndpoint is a named pipe plus a single-client slot (spec.md §3, §6).
// It is created lazily on first local-client connect and closed on worker
// exit or explicit release. The descriptor is either nil or an open FIFO;
// toggling between the two states is made atomic with respect to worker
// cancellation by holding mu across the whole open/close operation, the Go
// equivalent of the C implementation's PTHREAD_CANCEL_DISABLE bracket
// around close(2) in transport_release_pcm.
type PCMEndpoint struct {
	Path      string
	Direction PCMDirection

	mu        sync.Mutex
	file      *os.File
	connected bool
}

// NewPCMEndpoint allocates (but does not create on disk) the FIFO at
// filepath.Join(dir, name).
func NewPCMEndpoint(dir, name string, dir2 PCMDirection) *PCMEndpoint {
	return &PCMEndpoint{Path: filepath.Join(dir, name), Direction: dir2}
}

// Open creates the FIFO on disk if needed and opens the worker's end
// non-blocking, rejecting a second concurrent client per spec.md §6
// ("Exactly one client at a time; a second connection attempt must be
// rejected").
func (p *PCMEndpoint) Open() (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return nil, fmt.Errorf("ba: pcm endpoint %s: already has a connected client", p.Path)
	}

	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return nil, newErr(ErrResourceExhaustion, "pcm.Open", err)
	}
	if err := unix.Mkfifo(p.Path, 0o660); err != nil && !os.IsExist(err) {
		return nil, newErr(ErrResourceExhaustion, "pcm.Open", err)
	}

	flags := os.O_RDONLY
	if p.Direction == PCMCapture {
		flags = os.O_WRONLY
	}
	// Non-blocking open: worker loops must be able to poll for a client
	// rather than stall on open(2) until one connects.
	f, err := os.OpenFile(p.Path, flags|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, newErr(ErrPCMClientGone, "pcm.Open", err)
	}

	p.file = f
	p.connected = true
	return f, nil
}

// Close releases the endpoint, whether or not a client is connected.
// Idempotent.
func (p *PCMEndpoint) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	p.connected = false
	return err
}

// Connected reports whether a client is currently attached.
func (p *PCMEndpoint) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}
