package tts

import (
	"context"
	"fmt"
	"io"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// OpenAITTS synthesizes via the OpenAI speech endpoint using the official
// SDK, requesting raw 16-bit PCM output so no container parsing is needed
// downstream. Native output is 24kHz; Resample brings it to the pipeline's
// playback rate.
type OpenAITTS struct {
	client     oai.Client
	model      string
	voice      string
	nativeRate int
}

// NewOpenAITTS builds an OpenAI TTS client for the given model/voice pair.
func NewOpenAITTS(apiKey, model, voice string) *OpenAITTS {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}
	return &OpenAITTS{
		client:     oai.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		voice:      voice,
		nativeRate: 24000,
	}
}

func (t *OpenAITTS) Synthesize(ctx context.Context, text string) (audioio.Frame, error) {
	if text == "" {
		return SilenceClip(0), nil
	}

	resp, err := t.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(t.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(t.voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read response: %w", err)
	}

	return Resample(raw, t.nativeRate, audioio.SampleRate), nil
}

func (t *OpenAITTS) StreamSynthesize(ctx context.Context, text string, onChunk func(audioio.Frame) error) error {
	pcm, err := t.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return onChunk(pcm)
}

// Abort is a no-op: OpenAI's speech endpoint is a single blocking request,
// not a long-lived stream, so there is nothing in-flight to cancel besides
// ctx itself.
func (t *OpenAITTS) Abort() error { return nil }

func (t *OpenAITTS) Name() string { return "openai-tts" }
