package images

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stubVips(t *testing.T) (starts, stops *int) {
	t.Helper()

	starts, stops = new(int), new(int)
	origStart, origStop := startVips, stopVips
	origStarted, origStopped := vipsStarted, vipsStopped

	startVips = func() { *starts++ }
	stopVips = func() { *stops++ }
	vipsStarted, vipsStopped = false, false

	t.Cleanup(func() {
		startVips, stopVips = origStart, origStop
		vipsStarted, vipsStopped = origStarted, origStopped
	})
	return starts, stops
}

func TestVipsLifecycle_processWide(t *testing.T) {
	starts, stops := stubVips(t)

	// several builders in one process share a single libvips instance
	NewVipsEncoder()
	NewVipsEncoder()
	require.Equal(t, 1, *starts)
	require.Zero(t, *stops)

	Shutdown()
	Shutdown()
	require.Equal(t, 1, *stops)
}

func TestShutdown_neverStarted(t *testing.T) {
	_, stops := stubVips(t)

	Shutdown()
	require.Zero(t, *stops)
}
