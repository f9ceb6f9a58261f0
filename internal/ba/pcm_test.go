package ba

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCMEndpointOpenCloseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := NewPCMEndpoint(dir, "test.pcm", PCMPlayback)

	require.False(t, p.Connected())

	f, err := p.Open()
	require.NoError(t, err)
	require.NotNil(t, f)
	require.True(t, p.Connected())

	require.NoError(t, p.Close())
	require.False(t, p.Connected())

	// Closing again is a no-op, not an error.
	require.NoError(t, p.Close())
}

func TestPCMEndpointRejectsSecondConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	p := NewPCMEndpoint(dir, "test.pcm", PCMPlayback)

	_, err := p.Open()
	require.NoError(t, err)

	_, err = p.Open()
	require.Error(t, err)

	require.NoError(t, p.Close())

	// Once released, a new client may connect.
	_, err = p.Open()
	require.NoError(t, err)
}

func TestPCMEndpointCreatesFIFOUnderNestedDir(t *testing.T) {
	dir := t.TempDir()
	p := NewPCMEndpoint(dir, "nested/test.pcm", PCMCapture)
	require.Equal(t, PCMCapture, p.Direction)

	// The FIFO's parent directory doesn't exist yet; Open must create it
	// even though, for a capture (write-only) endpoint with no reader
	// connected, the subsequent non-blocking open(2) itself fails ENXIO.
	_, err := p.Open()
	require.Error(t, err)
	require.False(t, p.Connected())

	info, err := os.Stat(p.Path)
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&os.ModeNamedPipe)
}
