package protocol

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/harunnryd/signbridge/pkg/errorsx"
)

// InboundKind tags an InboundMessage.
type InboundKind int

const (
	KindBinaryImage InboundKind = iota + 1
	KindBinaryAudio
	KindStructured
)

func (k InboundKind) String() string {
	switch k {
	case KindBinaryImage:
		return "image"
	case KindBinaryAudio:
		return "audio"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// InboundMessage is a classified inbound frame.
type InboundMessage struct {
	Kind InboundKind

	// Data holds the raw bytes of binary frames and the raw JSON of structured ones.
	Data []byte

	// Value is the decoded JSON document of a structured frame.
	Value any

	// Predictions is set when a structured frame carries a non-null "predictions" field.
	Predictions    []Prediction
	HasPredictions bool
}

// Fields returns the structured document as an object, or nil when it is not one.
func (m InboundMessage) Fields() map[string]any {
	obj, _ := m.Value.(map[string]any)
	return obj
}

var errEmptyPayload = errors.New("empty payload")

// Classify turns one wire frame into an InboundMessage. Binary frames are never
// inspected: video sessions read them as images and audio sessions as audio clips.
// Text frames that are not valid JSON yield a DecodeError.
func Classify(mode Mode, binary bool, data []byte) (InboundMessage, error) {
	if binary {
		kind := KindBinaryImage
		if mode == ModeAudio {
			kind = KindBinaryAudio
		}
		return InboundMessage{Kind: kind, Data: data}, nil
	}
	return ParseStructured(data)
}

// ParseStructured decodes a text frame.
func ParseStructured(data []byte) (InboundMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return InboundMessage{}, errorsx.NewDecodeError(len(data), errEmptyPayload)
	}
	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return InboundMessage{}, errorsx.NewDecodeError(len(data), err)
	}
	msg := InboundMessage{Kind: KindStructured, Data: data, Value: value}
	obj, ok := value.(map[string]any)
	if !ok {
		return msg, nil
	}
	if raw, ok := obj["predictions"]; ok && raw != nil {
		var env struct {
			Predictions []Prediction `json:"predictions"`
		}
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return InboundMessage{}, errorsx.NewDecodeError(len(data), err)
		}
		msg.Predictions = env.Predictions
		if msg.Predictions == nil {
			msg.Predictions = []Prediction{}
		}
		msg.HasPredictions = true
	}
	return msg, nil
}
