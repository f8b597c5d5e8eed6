package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/signbridge/pkg/codec"
	"github.com/harunnryd/signbridge/pkg/frames"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/harunnryd/signbridge/pkg/render"
	"github.com/harunnryd/signbridge/pkg/transports"
	"github.com/harunnryd/signbridge/pkg/transports/websocket"
	"github.com/spf13/viper"
)

// probe pushes one JPEG or WAV file to the service and prints every reply
// that arrives before the timeout.
func main() {
	configPath := flag.String("config", "", "config file with endpoints")
	file := flag.String("file", "", "JPEG or WAV file to send")
	url := flag.String("url", "", "endpoint; defaults to the configured one for the file type")
	wait := flag.Duration("wait", 0, "how long to collect replies")
	translate := flag.Bool("translate", false, "send the translation request after the frame (video only)")
	flag.Parse()
	if *file == "" {
		fmt.Println("usage: probe -file=frame.jpg|clip.wav [-url=ws://...] [-wait=5s] [-translate]")
		os.Exit(1)
	}

	v, err := loadProbeConfig(*configPath)
	if err != nil {
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if *wait == 0 {
		*wait = v.GetDuration("probe.wait")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		fmt.Println("read error:", err)
		os.Exit(1)
	}
	frame, mode, err := buildFrame(data)
	if err != nil {
		fmt.Println("frame error:", err)
		os.Exit(1)
	}
	endpoint := *url
	if endpoint == "" {
		endpoint = v.GetString("endpoints." + string(mode))
	}

	if err := probe(endpoint, mode, frame, *translate, *wait); err != nil {
		fmt.Println("probe error:", err)
		os.Exit(1)
	}
}

func loadProbeConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("endpoints.video", "ws://localhost:8000/ws/deaf")
	v.SetDefault("endpoints.audio", "ws://localhost:8000/ws/normal")
	v.SetDefault("probe.wait", "5s")
	v.SetEnvPrefix("SIGNBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func buildFrame(data []byte) (frames.Frame, protocol.Mode, error) {
	meta := map[string]string{frames.MetaSessionID: "probe"}
	if codec.IsWAV(data) {
		pcm, err := codec.DecodeWAV(data)
		if err != nil {
			return nil, "", err
		}
		meta[frames.MetaMode] = string(protocol.ModeAudio)
		return frames.NewAudioFrame("probe", 0, data, pcm.SampleRate, pcm.Frames(), meta), protocol.ModeAudio, nil
	}
	img, err := codec.DecodeJPEG(data)
	if err != nil {
		return nil, "", errors.New("file is neither WAV nor JPEG")
	}
	b := img.Bounds()
	meta[frames.MetaMode] = string(protocol.ModeVideo)
	return frames.NewImageFrame("probe", 0, data, b.Dx(), b.Dy(), meta), protocol.ModeVideo, nil
}

func probe(endpoint string, mode protocol.Mode, frame frames.Frame, translate bool, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	conn, err := websocket.NewDialer(websocket.Config{}).Dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.Send(frame); err != nil {
		return err
	}
	fmt.Printf("sent %s frame (%d bytes) to %s\n", frame.Kind(), len(frame.Payload()), endpoint)
	if translate && mode == protocol.ModeVideo {
		if err := conn.Send(frames.NewControlFrame("probe", 1, protocol.ActionSendTranslation, nil)); err != nil {
			return err
		}
		fmt.Println("sent send_translation")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-conn.Recv():
			if !ok {
				if err := conn.Err(); err != nil {
					fmt.Println("connection closed:", err)
				}
				return nil
			}
			printReply(mode, m)
		}
	}
}

func printReply(mode protocol.Mode, m transports.Message) {
	msg, err := protocol.Classify(mode, m.Binary, m.Data)
	if err != nil {
		fmt.Printf("undecodable reply (%d bytes): %v\n", len(m.Data), err)
		return
	}
	switch msg.Kind {
	case protocol.KindStructured:
		if msg.HasPredictions {
			o := render.NewOverlay()
			o.Set(msg.Predictions)
			fmt.Printf("predictions:\n%s\n", o.Text())
			return
		}
		fmt.Printf("structured: %s\n", m.Data)
	default:
		fmt.Printf("%s reply (%d bytes)\n", msg.Kind, len(m.Data))
	}
}
