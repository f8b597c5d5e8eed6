package protocol

import (
	"encoding/json"
	"testing"

	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/stretchr/testify/require"
)

func TestClassifyBinaryByMode(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0x00}

	msg, err := Classify(ModeVideo, true, payload)
	require.NoError(t, err)
	require.Equal(t, KindBinaryImage, msg.Kind)
	require.Equal(t, payload, msg.Data)

	// Bytes that look like JSON are still binary when framed as binary.
	msg, err = Classify(ModeAudio, true, []byte(`{"predictions":[]}`))
	require.NoError(t, err)
	require.Equal(t, KindBinaryAudio, msg.Kind)
}

func TestClassifyPredictions(t *testing.T) {
	raw := []byte(`{"predictions":[{"class_name":"HELLO","confidence":0.92,"x1":10,"y1":10,"x2":50,"y2":60}]}`)
	msg, err := Classify(ModeVideo, false, raw)
	require.NoError(t, err)
	require.Equal(t, KindStructured, msg.Kind)
	require.True(t, msg.HasPredictions)
	require.Len(t, msg.Predictions, 1)

	p := msg.Predictions[0]
	require.Equal(t, "HELLO", p.ClassName)
	require.InDelta(t, 40, p.Width(), 1e-9)
	require.InDelta(t, 50, p.Height(), 1e-9)
	require.Equal(t, "HELLO (92.0%)", p.Label())
}

func TestClassifyEmptyPredictionsStillCounts(t *testing.T) {
	msg, err := Classify(ModeVideo, false, []byte(`{"predictions":[]}`))
	require.NoError(t, err)
	require.True(t, msg.HasPredictions)
	require.Empty(t, msg.Predictions)

	msg, err = Classify(ModeVideo, false, []byte(`{"predictions":null,"asl_text":"hi"}`))
	require.NoError(t, err)
	require.False(t, msg.HasPredictions)
	require.Equal(t, "hi", msg.Fields()["asl_text"])
}

func TestClassifyMalformed(t *testing.T) {
	for _, raw := range []string{"{not json", "", "   ", `{"predictions":"nope"}`} {
		_, err := Classify(ModeVideo, false, []byte(raw))
		require.Error(t, err, raw)
		require.True(t, errorsx.IsDecodeError(err), raw)
		require.Equal(t, errorsx.ReasonDecodeStructured, errorsx.Reason(err))
	}
}

func TestClassifyNonObjectJSON(t *testing.T) {
	msg, err := Classify(ModeAudio, false, []byte(`42`))
	require.NoError(t, err)
	require.Nil(t, msg.Fields())
	require.EqualValues(t, 42, msg.Value)
}

func TestSendTranslationMessage(t *testing.T) {
	var cm ControlMessage
	require.NoError(t, json.Unmarshal(SendTranslation(), &cm))
	require.Equal(t, ActionSendTranslation, cm.Action)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("deaf")
	require.NoError(t, err)
	require.Equal(t, ModeVideo, m)
	m, err = ParseMode("Normal")
	require.NoError(t, err)
	require.Equal(t, ModeAudio, m)
	_, err = ParseMode("radio")
	require.Error(t, err)
}
