// Package wake implements the Wake Detector (C2): a per-chunk boolean gate
// that accumulates a short window of energy and latches once triggered,
// until the caller resets it.
package wake

import (
	"math"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// Detector is called once per captured chunk. Detection is monotonic within
// an unreset window: once Detect returns true, it keeps returning true until
// Reset is called. Reset must be invoked after a successful detection,
// after TTS playback starts, and after a barge-in.
type Detector interface {
	Detect(chunk audioio.Frame) bool
	Reset()
	// Name identifies the wake model in use, surfaced in telemetry.
	Name() string
}

// EnergyGatedDetector is the reference Detector: no keyword spotting model,
// just an RMS-energy gate over a minimum run of consecutive loud frames.
// Real keyword-spotting engines (sherpa-onnx, whisper.cpp keyword mode)
// plug in behind the same interface; this is the lightweight,
// no-dependency default, in the same spirit as the teacher's RMSVAD being
// its "no-dependency default" for voice activity detection.
type EnergyGatedDetector struct {
	threshold   float64
	minRun      int
	run         int
	latched     bool
}

// NewEnergyGatedDetector builds a detector that requires minRun consecutive
// chunks with RMS energy above threshold (in [0,1] of full scale) before
// latching.
func NewEnergyGatedDetector(threshold float64, minRun int) *EnergyGatedDetector {
	if minRun < 1 {
		minRun = 1
	}
	return &EnergyGatedDetector{threshold: threshold, minRun: minRun}
}

func (d *EnergyGatedDetector) Detect(chunk audioio.Frame) bool {
	if d.latched {
		return true
	}

	if rms(chunk) > d.threshold {
		d.run++
		if d.run >= d.minRun {
			d.latched = true
		}
	} else {
		d.run = 0
	}

	return d.latched
}

func (d *EnergyGatedDetector) Reset() {
	d.latched = false
	d.run = 0
}

func (d *EnergyGatedDetector) Name() string {
	return "energy_gated"
}

func rms(chunk audioio.Frame) float64 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(chunk); i += 2 {
		sample := int16(chunk[i]) | int16(chunk[i+1])<<8
		f := float64(sample) / 32768.0
		sum += f * f
		n++
	}
	return math.Sqrt(sum / float64(n))
}
