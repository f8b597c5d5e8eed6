//go:build portaudio

package signbridge

import (
	"github.com/harunnryd/signbridge/pkg/adapters/capture"
	"github.com/harunnryd/signbridge/pkg/adapters/playback"
	"github.com/harunnryd/signbridge/pkg/configutil"
	"github.com/harunnryd/signbridge/pkg/devices/portaudio"
)

func init() {
	builtins = append(builtins, registerPortAudio)
}

func registerPortAudio(r *DeviceRegistry) {
	r.RegisterMicrophone("portaudio", func(settings map[string]any, env DeviceEnv) (capture.AudioSource, error) {
		s := portaudio.MicrophoneSettings{SampleRate: env.SampleRate}
		if err := configutil.Decode("portaudio microphone", settings, portaudio.MicrophoneSchema, &s); err != nil {
			return nil, err
		}
		return portaudio.NewMicrophone(s), nil
	})
	r.RegisterSpeaker("portaudio", func(settings map[string]any, _ DeviceEnv) (playback.Player, error) {
		var s portaudio.SpeakerSettings
		if err := configutil.Decode("portaudio speaker", settings, portaudio.SpeakerSchema, &s); err != nil {
			return nil, err
		}
		return portaudio.NewSpeaker(s), nil
	})
}
