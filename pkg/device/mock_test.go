package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goloadcell/pkg/config"
	"github.com/itohio/goloadcell/pkg/framing"
	"github.com/itohio/goloadcell/pkg/sim"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.Speed = 20
	cfg.Mock.Profile = "constant"
	cfg.Mock.Noise = 0
	cfg.Mock.Offset = 2450
	return cfg
}

func TestNewMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	assert.NotNil(t, m.cfg)
	assert.False(t, m.IsConnected())
	assert.ErrorIs(t, m.Send(framing.Command{Op: framing.OpGo}), ErrNotConnected)
	assert.NoError(t, m.Close())
}

func TestBoardConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sampler.Layout = "voltage"
	cfg.Mock.BatteryMV = 3700
	cfg.Mock.Profile = "constant"
	cfg.Mock.Offset = 1234

	bc, err := BoardConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Millisecond, bc.TickPeriod)
	assert.Equal(t, uint16(3700), bc.BatteryMV)
	assert.True(t, bc.Sampler.StartHalted)
	assert.Equal(t, int32(1234), bc.Load(time.Second))
	assert.Equal(t, float32(45), bc.Environment(0).Humidity)

	cfg.Sampler.Layout = "default"
	bc, err = BoardConfig(cfg)
	require.NoError(t, err)
	assert.Zero(t, bc.BatteryMV, "battery only reported by the voltage layout")

	cfg.Mock.Profile = "triangle"
	_, err = BoardConfig(cfg)
	assert.Error(t, err)
}

func TestMock_ConnectTwice(t *testing.T) {
	m := NewMock(fastConfig())
	require.NoError(t, m.Connect())
	defer m.Close()
	assert.ErrorIs(t, m.Connect(), ErrConnected)
}

func TestMock_Streams(t *testing.T) {
	m := NewMock(fastConfig())
	require.NoError(t, m.Connect())
	defer m.Close()
	require.NoError(t, m.Send(framing.Command{Op: framing.OpGo}))

	select {
	case r, ok := <-m.Samples():
		require.True(t, ok)
		assert.Equal(t, int32(2450), r.Load)
		assert.False(t, r.LoadErr)
	case <-time.After(5 * time.Second):
		t.Fatal("no sample from mocked device")
	}
}

func TestMock_Commands(t *testing.T) {
	m := NewMock(fastConfig())
	require.NoError(t, m.Connect())
	defer m.Close()

	require.NoError(t, m.Send(framing.Command{Op: framing.OpGo}))
	board := m.Board()
	require.Eventually(t, func() bool { return !board.Sampler.Halted() }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Send(framing.Command{Op: framing.OpForward, Percent: 50}))
	assert.Eventually(t, func() bool { return board.Drive.Duty() == 428 }, 5*time.Second, 5*time.Millisecond)
}

// TestMock_GracefulShutdown tests that Mock device closes samples channel
// when Close() is called.
func TestMock_GracefulShutdown(t *testing.T) {
	mock := NewMock(fastConfig())
	err := mock.Connect()
	assert.NoError(t, err)
	require.NoError(t, mock.Send(framing.Command{Op: framing.OpGo}))

	samples := mock.Samples()

	// Read a few samples
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range samples {
			received++
			if received == 3 {
				// Got enough samples, now close device
				mock.Close()
			}
		}
	}()

	// Wait for samples and channel closure
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Samples channel did not close within timeout")
	}

	assert.GreaterOrEqual(t, received, 3, "Should receive samples before channel closes")

	_, ok := <-samples
	assert.False(t, ok, "Channel should be closed")
	assert.False(t, mock.IsConnected())
}

func TestMock_Reconnect(t *testing.T) {
	m := NewMock(fastConfig())
	require.NoError(t, m.Connect())
	first := m.Board()
	require.NoError(t, m.Close())

	require.NoError(t, m.Connect())
	defer m.Close()
	assert.NotSame(t, first, m.Board())
	assert.IsType(t, &sim.Board{}, m.Board())
}
