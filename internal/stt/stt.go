// Package stt defines the Speech-to-Text Port (C4) and its backends.
package stt

import (
	"context"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// Provider transcribes a blob of int16 LE mono PCM at the pipeline's
// capture rate. An empty or whitespace-only result is a valid outcome; the
// orchestrator treats it as "skip" rather than an error.
type Provider interface {
	Transcribe(ctx context.Context, pcm audioio.Frame) (string, error)
	Name() string
}
