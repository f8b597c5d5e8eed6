package render

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/signbridge/pkg/codec"
	devmock "github.com/harunnryd/signbridge/pkg/devices/mock"
	"github.com/harunnryd/signbridge/pkg/errorsx"
	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/stretchr/testify/require"
)

var hello = protocol.Prediction{ClassName: "HELLO", Confidence: 0.92, X1: 10, Y1: 10, X2: 50, Y2: 60}

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(20)
	for i := 0; i < 25; i++ {
		h.Add(Image{Data: []byte{byte(i)}})
	}
	items := h.Items()
	require.Len(t, items, 20)
	require.Equal(t, byte(24), items[0].Data[0])
	require.Equal(t, byte(5), items[19].Data[0])
}

func TestOverlayStrokesPrediction(t *testing.T) {
	o := NewOverlay()
	o.Set([]protocol.Prediction{hello})
	canvas := o.Redraw(640, 480)
	require.Equal(t, 640, canvas.Bounds().Dx())
	require.Equal(t, 480, canvas.Bounds().Dy())

	red := color.RGBA{R: 255, A: 255}
	clear := color.RGBA{}
	for _, pt := range [][2]int{{10, 30}, {9, 30}, {50, 30}, {49, 30}, {30, 10}, {30, 60}, {10, 10}, {50, 60}} {
		require.Equal(t, red, canvas.RGBAAt(pt[0], pt[1]), "pixel %v", pt)
	}
	for _, pt := range [][2]int{{30, 30}, {8, 30}, {51, 30}, {30, 8}, {30, 62}, {100, 100}} {
		require.Equal(t, clear, canvas.RGBAAt(pt[0], pt[1]), "pixel %v", pt)
	}
}

func TestOverlayRedrawClears(t *testing.T) {
	o := NewOverlay()
	o.Set([]protocol.Prediction{hello})
	_ = o.Redraw(320, 240)
	o.Set(nil)
	canvas := o.Redraw(320, 240)
	require.Equal(t, color.RGBA{}, canvas.RGBAAt(10, 30))
	require.Equal(t, NoPredictions, o.Text())
}

func TestOverlayLabels(t *testing.T) {
	o := NewOverlay()
	o.Set([]protocol.Prediction{hello, {ClassName: "THANKS", Confidence: 0.5}})
	require.Equal(t, []string{"HELLO (92.0%)", "THANKS (50.0%)"}, o.Labels())
	require.Equal(t, "HELLO (92.0%)\nTHANKS (50.0%)", o.Text())
}

func TestRendererPlaysClips(t *testing.T) {
	player := devmock.NewPlayer()
	r, err := New(Config{Player: player})
	require.NoError(t, err)

	changes := make(chan Change, 4)
	r.OnChange(func(c Change) { changes <- c })

	r.Play(codec.EncodeWAV([]float32{0.1, 0.2}, 16000))
	r.Play([]byte("garbage"))
	r.Wait()

	require.Len(t, player.Clips(), 1)
	require.Equal(t, 16000, player.Clips()[0].SampleRate)

	var failed int
	for i := 0; i < 2; i++ {
		c := <-changes
		require.Equal(t, ChangePlayback, c.Kind)
		if c.Err != nil {
			failed++
			require.Equal(t, errorsx.ReasonPlaybackDecode, errorsx.Reason(c.Err))
		}
	}
	require.Equal(t, 1, failed)
	require.NoError(t, r.Close())
}

func TestRendererResetAndSinks(t *testing.T) {
	dir := t.TempDir()
	r, err := New(Config{OutputDir: dir, HistoryCap: 2})
	require.NoError(t, err)

	r.ShowImage([]byte{0xFF, 0xD8})
	r.ShowPredictions([]protocol.Prediction{hello})
	msg, err := protocol.ParseStructured([]byte(`{"asl_text":"HELLO"}`))
	require.NoError(t, err)
	r.ShowStructured(msg)

	got, ok := r.Structured()
	require.True(t, ok)
	require.Equal(t, "HELLO", got.Fields()["asl_text"])

	_, err = os.Stat(filepath.Join(dir, "overlay.png"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "structured.json"))
	require.NoError(t, err)
	matches, _ := filepath.Glob(filepath.Join(dir, "received-*.jpg"))
	require.Len(t, matches, 1)

	r.Reset()
	require.Zero(t, r.History().Len())
	require.Empty(t, r.Overlay().Predictions())
	_, ok = r.Structured()
	require.False(t, ok)
}

func TestPredictionsRedrawCanvasWithoutOutputDir(t *testing.T) {
	r, err := New(Config{})
	require.NoError(t, err)
	defer r.Close()
	require.Nil(t, r.Canvas())

	r.ShowPredictions([]protocol.Prediction{hello})
	canvas := r.Canvas()
	require.NotNil(t, canvas)
	require.Equal(t, DefaultDisplayWidth, canvas.Bounds().Dx())
	require.Equal(t, DefaultDisplayHeight, canvas.Bounds().Dy())
	require.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(10, 30))

	r.ShowPredictions(nil)
	require.Equal(t, color.RGBA{}, r.Canvas().RGBAAt(10, 30))

	r.ShowPredictions([]protocol.Prediction{hello})
	r.Reset()
	require.Equal(t, color.RGBA{}, r.Canvas().RGBAAt(10, 30))
}
