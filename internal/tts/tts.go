// Package tts defines the Text-to-Speech Port (C4) and its backends.
package tts

import (
	"context"
	"time"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// Provider synthesizes speech at the pipeline's playback rate. Empty input
// returns a short silence clip instead of an error. Abort cancels any
// in-flight streaming synthesis; it is the gap the teacher's
// ManagedStream.internalInterrupt called (ms.orch.tts.Abort()) but the
// teacher's TTSProvider interface never declared.
type Provider interface {
	Synthesize(ctx context.Context, text string) (audioio.Frame, error)
	StreamSynthesize(ctx context.Context, text string, onChunk func(audioio.Frame) error) error
	Abort() error
	Name() string
}

// SilenceClip returns a clip of pure digital silence of the given duration,
// used whenever a backend is asked to synthesize empty input. Defaults to
// audioio.DefaultSilenceClipLen when d is zero.
func SilenceClip(d time.Duration) audioio.Frame {
	if d == 0 {
		d = audioio.DefaultSilenceClipLen
	}
	return make(audioio.Frame, audioio.FrameSize(d))
}
