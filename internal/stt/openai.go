package stt

import (
	"bytes"
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// OpenAISTT transcribes via the OpenAI Whisper endpoint using the official
// SDK, in place of the teacher's hand-rolled net/http multipart client
// (pkg/providers/stt/openai.go) — the SDK is already part of the stack for
// LLM access, so STT reuses it rather than a second bespoke HTTP client.
type OpenAISTT struct {
	client     oai.Client
	model      string
	language   string
	sampleRate int
}

// NewOpenAISTT builds an OpenAI Whisper client. baseURL, when non-empty,
// redirects the same SDK at a compatible endpoint (e.g. Groq's
// OpenAI-compatible audio API).
func NewOpenAISTT(apiKey, model, language, baseURL string) *OpenAISTT {
	if model == "" {
		model = "whisper-1"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAISTT{
		client:     oai.NewClient(opts...),
		model:      model,
		language:   language,
		sampleRate: audioio.SampleRate,
	}
}

func (s *OpenAISTT) Transcribe(ctx context.Context, pcm audioio.Frame) (string, error) {
	wavData := audioio.NewWavBuffer(pcm, s.sampleRate)

	params := oai.AudioTranscriptionNewParams{
		Model: oai.AudioModel(s.model),
		File:  oai.File(bytes.NewReader(wavData), "audio.wav", "audio/wav"),
	}
	if s.language != "" {
		params.Language = param.NewOpt(s.language)
	}

	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai stt: %w", err)
	}

	return resp.Text, nil
}

func (s *OpenAISTT) Name() string { return "openai-stt" }
