package signbridge

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/adapters/playback"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/devices/disk"
	"github.com/harunnryd/signbridge/pkg/devices/mjpeg"
	"github.com/harunnryd/signbridge/pkg/devices/mock"
)

// DeviceEnv is what a device factory may depend on besides its settings.
type DeviceEnv struct {
	Logger     *slog.Logger
	SampleRate int
}

type (
	CameraFactory     func(settings map[string]any, env DeviceEnv) (capture.VideoSource, error)
	MicrophoneFactory func(settings map[string]any, env DeviceEnv) (capture.AudioSource, error)
	SpeakerFactory    func(settings map[string]any, env DeviceEnv) (playback.Player, error)
)

// DeviceRegistry maps provider names from the devices config section to
// factories. Names are case-insensitive.
type DeviceRegistry struct {
	cameras     map[string]CameraFactory
	microphones map[string]MicrophoneFactory
	speakers    map[string]SpeakerFactory
}

// builtins run for every new registry; build-tagged files append to it.
var builtins = []func(*DeviceRegistry){registerMock, registerMJPEG, registerDisk}

func NewDeviceRegistry() *DeviceRegistry {
	r := &DeviceRegistry{
		cameras:     make(map[string]CameraFactory),
		microphones: make(map[string]MicrophoneFactory),
		speakers:    make(map[string]SpeakerFactory),
	}
	for _, register := range builtins {
		register(r)
	}
	return r
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *DeviceRegistry) RegisterCamera(name string, f CameraFactory) {
	r.cameras[providerKey(name)] = f
}

func (r *DeviceRegistry) RegisterMicrophone(name string, f MicrophoneFactory) {
	r.microphones[providerKey(name)] = f
}

func (r *DeviceRegistry) RegisterSpeaker(name string, f SpeakerFactory) {
	r.speakers[providerKey(name)] = f
}

func (r *DeviceRegistry) BuildCamera(cfg DeviceConfig, env DeviceEnv) (capture.VideoSource, error) {
	f := r.cameras[providerKey(cfg.Provider)]
	if f == nil {
		return nil, fmt.Errorf("camera provider not registered: %s (have %s)", cfg.Provider, names(r.cameras))
	}
	return f(cfg.Settings, env)
}

func (r *DeviceRegistry) BuildMicrophone(cfg DeviceConfig, env DeviceEnv) (capture.AudioSource, error) {
	f := r.microphones[providerKey(cfg.Provider)]
	if f == nil {
		return nil, fmt.Errorf("microphone provider not registered: %s (have %s)", cfg.Provider, names(r.microphones))
	}
	return f(cfg.Settings, env)
}

func (r *DeviceRegistry) BuildSpeaker(cfg DeviceConfig, env DeviceEnv) (playback.Player, error) {
	f := r.speakers[providerKey(cfg.Provider)]
	if f == nil {
		return nil, fmt.Errorf("speaker provider not registered: %s (have %s)", cfg.Provider, names(r.speakers))
	}
	return f(cfg.Settings, env)
}

func names[T any](m map[string]T) string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func registerMock(r *DeviceRegistry) {
	r.RegisterCamera("mock", func(settings map[string]any, _ DeviceEnv) (capture.VideoSource, error) {
		var s mock.CameraSettings
		if err := configutil.Decode("mock camera", settings, mock.CameraSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewCamera(s), nil
	})
	r.RegisterMicrophone("mock", func(settings map[string]any, env DeviceEnv) (capture.AudioSource, error) {
		s := mock.MicrophoneSettings{SampleRate: env.SampleRate}
		if err := configutil.Decode("mock microphone", settings, mock.MicrophoneSchema, &s); err != nil {
			return nil, err
		}
		return mock.NewMicrophone(s), nil
	})
	r.RegisterSpeaker("mock", func(settings map[string]any, _ DeviceEnv) (playback.Player, error) {
		if err := configutil.ValidateSettings(settings, configutil.Schema{}); err != nil {
			return nil, fmt.Errorf("mock speaker settings: %w", err)
		}
		return mock.NewPlayer(), nil
	})
}

func registerMJPEG(r *DeviceRegistry) {
	r.RegisterCamera("mjpeg", func(settings map[string]any, env DeviceEnv) (capture.VideoSource, error) {
		var s mjpeg.Settings
		if err := configutil.Decode("mjpeg camera", settings, mjpeg.Schema, &s); err != nil {
			return nil, err
		}
		return mjpeg.New(s, env.Logger)
	})
}

func registerDisk(r *DeviceRegistry) {
	r.RegisterSpeaker("disk", func(settings map[string]any, _ DeviceEnv) (playback.Player, error) {
		var s disk.Settings
		if err := configutil.Decode("disk speaker", settings, disk.Schema, &s); err != nil {
			return nil, err
		}
		return disk.New(s)
	})
}
