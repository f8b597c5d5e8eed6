package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	wavHeaderSize = 44
	formatPCM     = 1
	formatFloat   = 3
)

var (
	ErrNotWAV         = errors.New("not a RIFF/WAVE container")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
)

// PCM is decoded audio ready for a playback device. Samples are interleaved
// and normalized to [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames is the number of sample frames (samples per channel).
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// EncodeWAV wraps mono float samples into a 16-bit little-endian PCM WAV container.
// Samples are clamped to [-1, 1], scaled by 32767 and truncated toward zero.
// Same input always yields the same bytes.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataBytes := len(samples) * 2
	buf := make([]byte, wavHeaderSize+dataBytes)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataBytes))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataBytes))

	off := wavHeaderSize
	for _, s := range samples {
		binary.LittleEndian.PutUint16(buf[off:], uint16(floatToPCM16(s)))
		off += 2
	}
	return buf
}

func floatToPCM16(s float32) int16 {
	switch {
	case s != s: // NaN
		return 0
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	return int16(s * 32767)
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV reads a PCM16 or float32 WAV container. Unknown chunks are skipped.
func DecodeWAV(data []byte) (PCM, error) {
	if !IsWAV(data) {
		return PCM{}, ErrNotWAV
	}
	var (
		format   uint16
		channels int
		rate     int
		bits     int
		haveFmt  bool
		payload  []byte
	)
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streams written before the final size is known often lie here.
			end = len(data)
		}
		switch id {
		case "fmt ":
			if end-body < 16 {
				return PCM{}, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body:])
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			rate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			payload = data[body:end]
		}
		off = end + (size & 1)
	}
	if !haveFmt || payload == nil {
		return PCM{}, fmt.Errorf("%w: missing fmt or data chunk", ErrNotWAV)
	}
	if channels <= 0 || rate <= 0 {
		return PCM{}, fmt.Errorf("%w: channels=%d rate=%d", ErrUnsupportedWAV, channels, rate)
	}

	var samples []float32
	switch {
	case format == formatPCM && bits == 16:
		samples = make([]float32, len(payload)/2)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(payload[i*2:]))
			samples[i] = float32(v) / 32768
		}
	case format == formatFloat && bits == 32:
		samples = make([]float32, len(payload)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
		}
	default:
		return PCM{}, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupportedWAV, format, bits)
	}
	return PCM{Samples: samples, SampleRate: rate, Channels: channels}, nil
}
