package signbridge

import (
	"testing"

	"github.com/harunnryd/signbridge/pkg/devices/mock"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuildsMockDevices(t *testing.T) {
	r := NewDeviceRegistry()
	env := DeviceEnv{SampleRate: 16000}

	cam, err := r.BuildCamera(DeviceConfig{Provider: "Mock", Settings: map[string]any{"width": 32, "height": "24"}}, env)
	require.NoError(t, err)
	require.Equal(t, "mock_camera", cam.Name())

	mic, err := r.BuildMicrophone(DeviceConfig{Provider: "mock", Settings: map[string]any{"manual": true}}, env)
	require.NoError(t, err)
	require.IsType(t, &mock.Microphone{}, mic)

	spk, err := r.BuildSpeaker(DeviceConfig{Provider: "disk", Settings: map[string]any{"dir": t.TempDir()}}, env)
	require.NoError(t, err)
	require.Equal(t, "disk_player", spk.Name())
}

func TestRegistryRejectsBadProviders(t *testing.T) {
	r := NewDeviceRegistry()
	_, err := r.BuildCamera(DeviceConfig{Provider: "webcam"}, DeviceEnv{})
	require.ErrorContains(t, err, "camera provider not registered: webcam")

	_, err = r.BuildCamera(DeviceConfig{Provider: "mjpeg"}, DeviceEnv{})
	require.ErrorContains(t, err, "missing: url")

	_, err = r.BuildMicrophone(DeviceConfig{Provider: "mock", Settings: map[string]any{"gain": 3}}, DeviceEnv{})
	require.ErrorContains(t, err, "unknown: gain")
}
