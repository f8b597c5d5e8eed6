// Package protocol defines the wire messages exchanged with the inference service.
//
// Outbound payloads are raw binary frames (JPEG in video mode, WAV in audio mode)
// plus one text control message. Inbound frames are classified by framing alone:
// a binary frame is an image or an audio clip depending on the session mode, and a
// text frame is a JSON document.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects which endpoint a session talks to and how inbound binary is read.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeAudio Mode = "audio"
)

// ParseMode accepts the mode names and the endpoint aliases used by the service.
func ParseMode(v string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "video", "deaf", "camera":
		return ModeVideo, nil
	case "audio", "normal", "mic", "microphone":
		return ModeAudio, nil
	default:
		return "", fmt.Errorf("unknown mode %q", v)
	}
}

func (m Mode) String() string { return string(m) }

// ActionSendTranslation asks the service to emit the buffered translation.
const ActionSendTranslation = "send_translation"

// ControlMessage is the only outbound text frame.
type ControlMessage struct {
	Action string `json:"action"`
}

// SendTranslation returns the encoded send_translation control message.
func SendTranslation() []byte {
	return Control(ActionSendTranslation)
}

// Control encodes a control message for action.
func Control(action string) []byte {
	b, _ := json.Marshal(ControlMessage{Action: action})
	return b
}

// Prediction is one detection reported by the service, in display pixel space.
type Prediction struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Width is x2-x1.
func (p Prediction) Width() float64 { return p.X2 - p.X1 }

// Height is y2-y1.
func (p Prediction) Height() float64 { return p.Y2 - p.Y1 }

// Label renders the prediction the way the result list shows it, e.g. "HELLO (92.0%)".
func (p Prediction) Label() string {
	return fmt.Sprintf("%s (%.1f%%)", p.ClassName, p.Confidence*100)
}
