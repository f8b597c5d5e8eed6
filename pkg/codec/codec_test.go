package codec

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeKeepsOrderAndTotal(t *testing.T) {
	chunks := [][]float32{
		make([]float32, 100),
		make([]float32, 50),
		make([]float32, 200),
	}
	chunks[0][0] = 0.1
	chunks[1][0] = 0.2
	chunks[2][199] = 0.3

	total := TotalSamples(chunks)
	require.Equal(t, 350, total)

	out := MergeFloat32(chunks, total)
	require.Len(t, out, 350)
	require.Equal(t, float32(0.1), out[0])
	require.Equal(t, float32(0.2), out[100])
	require.Equal(t, float32(0.3), out[349])
}

func TestMergeHonoursDeclaredTotal(t *testing.T) {
	out := MergeFloat32([][]float32{{1, 2, 3}}, 2)
	require.Equal(t, []float32{1, 2}, out)
	out = MergeFloat32([][]float32{{1}}, 3)
	require.Equal(t, []float32{1, 0, 0}, out)
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := make([]float32, 350)
	wav := EncodeWAV(samples, 44100)
	require.Len(t, wav, 44+700)

	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, uint32(36+700), binary.LittleEndian.Uint32(wav[4:8]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, "fmt ", string(wav[12:16]))
	require.Equal(t, uint32(16), binary.LittleEndian.Uint32(wav[16:20]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	require.Equal(t, uint32(44100), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(88200), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	require.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	require.Equal(t, "data", string(wav[36:40]))
	require.Equal(t, uint32(700), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestEncodeWAVSamples(t *testing.T) {
	wav := EncodeWAV([]float32{0, 1, -1, 0.5, 2, -3}, 8000)
	read := func(i int) int16 {
		return int16(binary.LittleEndian.Uint16(wav[44+i*2:]))
	}
	require.Equal(t, int16(0), read(0))
	require.Equal(t, int16(32767), read(1))
	require.Equal(t, int16(-32767), read(2))
	require.Equal(t, int16(16383), read(3))
	require.Equal(t, int16(32767), read(4))
	require.Equal(t, int16(-32767), read(5))
}

func TestEncodeWAVDeterministic(t *testing.T) {
	samples := []float32{0.25, -0.75, 0.125}
	require.True(t, bytes.Equal(EncodeWAV(samples, 16000), EncodeWAV(samples, 16000)))
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	pcm, err := DecodeWAV(EncodeWAV([]float32{0.5, -0.5}, 22050))
	require.NoError(t, err)
	require.Equal(t, 22050, pcm.SampleRate)
	require.Equal(t, 1, pcm.Channels)
	require.Len(t, pcm.Samples, 2)
	require.InDelta(t, 0.5, pcm.Samples[0], 1e-3)
	require.InDelta(t, -0.5, pcm.Samples[1], 1e-3)
}

func TestDecodeAudioRejectsGarbage(t *testing.T) {
	_, err := DecodeAudio([]byte("hello"))
	require.ErrorIs(t, err, ErrUnknownAudio)

	_, err = DecodeWAV([]byte("RIFF\x00\x00\x00\x00WAVE"))
	require.ErrorIs(t, err, ErrNotWAV)
}

func TestMonoDownmix(t *testing.T) {
	p := Mono(PCM{Samples: []float32{1, 0, 0.5, 0.5}, SampleRate: 8000, Channels: 2})
	require.Equal(t, 1, p.Channels)
	require.Equal(t, []float32{0.5, 0.5}, p.Samples)
}

func TestRasterizeAndEncode(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			src.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	same := Rasterize(src, 32, 24)
	require.Equal(t, image.Rect(0, 0, 32, 24), same.Bounds())

	scaled := Rasterize(src, 64, 48)
	require.Equal(t, image.Rect(0, 0, 64, 48), scaled.Bounds())

	data, err := ImageEncoder{Quality: 0.6}.Encode(scaled)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	img, err := DecodeJPEG(data)
	require.NoError(t, err)
	require.Equal(t, 64, img.Bounds().Dx())
}

func TestEncoderQualityMapping(t *testing.T) {
	require.Equal(t, 60, ImageEncoder{}.jpegQuality())
	require.Equal(t, 60, ImageEncoder{Quality: 0.6}.jpegQuality())
	require.Equal(t, 100, ImageEncoder{Quality: 4}.jpegQuality())
}
