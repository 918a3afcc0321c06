package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// GroqSTT calls Groq's OpenAI-compatible Whisper transcription endpoint via
// a raw multipart upload. No official Go SDK for this endpoint exists in
// the retrieved reference pack, so this stays on net/http as the teacher's
// pkg/providers/stt/groq.go does.
type GroqSTT struct {
	apiKey     string
	url        string
	model      string
	language   string
	sampleRate int
	client     *http.Client
}

// NewGroqSTT builds a Groq Whisper client. language is an optional ISO-639-1
// hint; empty lets Groq auto-detect.
func NewGroqSTT(apiKey, model, language string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey:     apiKey,
		url:        "https://api.groq.com/openai/v1/audio/transcriptions",
		model:      model,
		language:   language,
		sampleRate: audioio.SampleRate,
		client:     http.DefaultClient,
	}
}

func (s *GroqSTT) Transcribe(ctx context.Context, pcm audioio.Frame) (string, error) {
	wavData := audioio.NewWavBuffer(pcm, s.sampleRate)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", err
	}
	if s.language != "" {
		if err := writer.WriteField("language", s.language); err != nil {
			return "", err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Text, nil
}

func (s *GroqSTT) Name() string { return "groq-stt" }
