package speech

import "math"

// Postprocess turns a raw engine waveform into a playback-ready one:
// normalize to unit peak, scale by the volume fraction, then time-scale by
// the speech rate. The order matters: volume applies to the normalized
// signal, and resampling preserves amplitude.
func Postprocess(samples []float64, volume, rate float64) []float64 {
	out := Normalize(samples)
	out = ApplyVolume(out, volume)
	return Resample(out, rate)
}

// Normalize scales the waveform to peak absolute amplitude 1.0. A silent or
// empty waveform is returned unchanged.
func Normalize(samples []float64) []float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return samples
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// ApplyVolume scales every sample by the volume fraction (1.0 = unchanged).
func ApplyVolume(samples []float64, volume float64) []float64 {
	if volume == 1.0 {
		return samples
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s * volume
	}
	return out
}

// Resample time-scales the waveform by the speech rate via linear
// interpolation: rate 2.0 halves the length (faster speech), rate 0.5
// doubles it. Rates at or below zero, and 1.0, leave the waveform unchanged.
func Resample(samples []float64, rate float64) []float64 {
	if rate == 1.0 || rate <= 0 || len(samples) == 0 {
		return samples
	}

	newLen := int(float64(len(samples)) / rate)
	if newLen < 1 {
		newLen = 1
	}

	out := make([]float64, newLen)
	if newLen == 1 {
		out[0] = samples[0]
		return out
	}

	step := float64(len(samples)-1) / float64(newLen-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = samples[lo]*(1-frac) + samples[lo+1]*frac
	}
	return out
}
