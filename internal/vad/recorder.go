// Package vad implements the VAD Recorder (C3): it consumes a chunk stream
// and returns a single concatenated PCM blob bounded by silence/duration
// rules, generalizing the teacher's per-chunk RMSVAD.Process event machine
// (pkg/orchestrator/vad.go) into a blocking "consume a stream, return one
// blob" recorder.
package vad

import (
	"context"
	"math"
	"time"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// Params configures a capture. Durations are expressed in seconds to match
// the natural unit of RMS/silence tuning.
type Params struct {
	SilenceThreshold     float64
	SilenceDurationS     float64
	MinDurationS         float64
	MaxDurationS         float64
	SpeechChunksRequired int
}

// Recorder captures one utterance from a chunk stream.
type Recorder struct {
	params Params
}

// NewRecorder builds a Recorder with the given parameters.
func NewRecorder(params Params) *Recorder {
	return &Recorder{params: params}
}

// Capture consumes chunks from stream until speech has been seen and then
// enough trailing silence has elapsed, or max duration is hit, whichever
// comes first. The underlying stream is always closed on exit, success or
// error. Returns the concatenated PCM blob of everything captured,
// including leading silence before speech_started.
func (r *Recorder) Capture(ctx context.Context, stream audioio.ChunkStream) (audioio.Frame, error) {
	defer stream.Close()

	var (
		out               []byte
		speechStarted     bool
		aboveRun          int
		elapsed           time.Duration
		silenceWindow     time.Duration
	)

	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			return out, err
		}

		out = append(out, chunk...)
		chunkDur := chunkDuration(chunk)
		elapsed += chunkDur

		energy := rms(chunk)
		above := energy > r.params.SilenceThreshold

		if above {
			aboveRun++
			if !speechStarted && aboveRun >= r.params.SpeechChunksRequired {
				speechStarted = true
			}
			silenceWindow = 0
		} else {
			aboveRun = 0
			if speechStarted {
				silenceWindow += chunkDur
			}
		}

		elapsedS := elapsed.Seconds()

		if elapsedS >= r.params.MaxDurationS {
			return out, nil
		}

		if speechStarted &&
			silenceWindow.Seconds() >= r.params.SilenceDurationS &&
			elapsedS >= r.params.MinDurationS {
			return out, nil
		}
	}
}

func chunkDuration(chunk audioio.Frame) time.Duration {
	samples := len(chunk) / audioio.BytesPerSample
	seconds := float64(samples) / float64(audioio.SampleRate)
	return time.Duration(seconds * float64(time.Second))
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
