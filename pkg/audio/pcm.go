package audio

import "fmt"

// ErrOddPCMLength is returned by [DecodePCM16] when the byte slice cannot
// be an s16le stream because its length is odd.
var ErrOddPCMLength = fmt.Errorf("audio: pcm data has odd byte count")

// EncodePCM16 converts mono float32 samples to little-endian signed 16-bit
// PCM. Each sample is scaled by 32768 and truncated toward zero; values
// outside [-1, 1] are clamped to the int16 range. An empty input yields an
// empty (non-nil) slice.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM bytes to mono
// float32 samples by dividing each value by 32768. Returns
// [ErrOddPCMLength] when len(pcm) is odd.
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCMLength
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out, nil
}

// Resample converts mono float32 samples from srcRate to dstRate using
// linear interpolation. If the rates match (or are invalid) the input is
// returned unchanged.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	out := make([]float32, dstLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = float32(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}
