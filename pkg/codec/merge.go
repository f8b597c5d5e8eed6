// Package codec holds the pure media transforms used on both sides of a session:
// sample merging, WAV encoding and decoding, MP3 decoding and JPEG compression.
package codec

// MergeFloat32 concatenates chunks in order into one buffer of exactly total samples.
// When total disagrees with the chunk lengths the result is still total long:
// missing tail samples are zero and excess samples are cut.
func MergeFloat32(chunks [][]float32, total int) []float32 {
	if total < 0 {
		total = 0
	}
	out := make([]float32, total)
	off := 0
	for _, c := range chunks {
		if off >= total {
			break
		}
		off += copy(out[off:], c)
	}
	return out
}

// TotalSamples is the sum of the chunk lengths.
func TotalSamples(chunks [][]float32) int {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	return n
}
