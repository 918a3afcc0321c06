package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// DeepgramSTT calls Deepgram's raw PCM listen endpoint. No official Go SDK
// for Deepgram appears anywhere in the retrieved reference pack, so this
// stays on net/http, same as the teacher's pkg/providers/stt/deepgram.go.
type DeepgramSTT struct {
	apiKey   string
	url      string
	language string
	client   *http.Client
}

// NewDeepgramSTT builds a Deepgram client. language is an optional
// ISO-639-1 hint; empty lets Deepgram auto-detect.
func NewDeepgramSTT(apiKey, language string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey:   apiKey,
		url:      "https://api.deepgram.com/v1/listen",
		language: language,
		client:   http.DefaultClient,
	}
}

func (s *DeepgramSTT) Transcribe(ctx context.Context, pcm audioio.Frame) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	if s.language != "" {
		params.Set("language", s.language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(pcm))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=1", audioio.SampleRate))

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}

	return result.Results.Channels[0].Alternatives[0].Transcript, nil
}

func (s *DeepgramSTT) Name() string { return "deepgram-stt" }
