package tts

import (
	"encoding/binary"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// LinearResampler converts int16 LE mono PCM between sample rates by linear
// interpolation, adapted from agalue-sherpa-voice-assistant's
// internal/audio/resampler.go (which operates on float32 samples; this
// keeps backends that deal in raw PCM16 bytes from needing to shuttle
// through a float buffer manually).
type LinearResampler struct {
	fromRate   int
	toRate     int
	ratio      float64
	lastSample float64
}

// NewLinearResampler builds a resampler for the given source/target rates.
func NewLinearResampler(fromRate, toRate int) *LinearResampler {
	return &LinearResampler{
		fromRate: fromRate,
		toRate:   toRate,
		ratio:    float64(toRate) / float64(fromRate),
	}
}

// Process resamples one chunk of int16 LE mono PCM. Each chunk is
// interpolated from its own samples only: the chunk's last sample is kept
// in lastSample, but the next call does not blend it in, so chunk
// boundaries are not smoothed.
func (r *LinearResampler) Process(pcm audioio.Frame) audioio.Frame {
	if r.ratio == 1.0 {
		return pcm
	}

	inSamples := len(pcm) / audioio.BytesPerSample
	if inSamples == 0 {
		return pcm
	}

	outLen := int(float64(inSamples) * r.ratio)
	out := make(audioio.Frame, outLen*audioio.BytesPerSample)

	sampleAt := func(idx int) float64 {
		if idx < 0 {
			return r.lastSample
		}
		if idx >= inSamples {
			idx = inSamples - 1
		}
		s := int16(pcm[idx*2]) | int16(pcm[idx*2+1])<<8
		return float64(s)
	}

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s1 := sampleAt(srcIdx - 1)
		if srcIdx < inSamples {
			s1 = sampleAt(srcIdx)
		}
		s2 := s1
		if srcIdx+1 < inSamples {
			s2 = sampleAt(srcIdx + 1)
		}

		v := s1 + (s2-s1)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}

	r.lastSample = sampleAt(inSamples - 1)
	return out
}

// Resample is a convenience one-shot wrapper that resamples pcm with a
// fresh LinearResampler.
func Resample(pcm audioio.Frame, fromRate, toRate int) audioio.Frame {
	if fromRate == toRate {
		return pcm
	}
	return NewLinearResampler(fromRate, toRate).Process(pcm)
}
