package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

func TestDeepgramSTTTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		resp := map[string]interface{}{
			"results": map[string]interface{}{
				"channels": []map[string]interface{}{
					{
						"alternatives": []map[string]interface{}{
							{"transcript": "deepgram transcription"},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s := NewDeepgramSTT("test-key", "en")
	s.url = server.URL

	result, err := s.Transcribe(context.Background(), audioio.Frame{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "deepgram transcription" {
		t.Errorf("expected 'deepgram transcription', got %q", result)
	}
	if s.Name() != "deepgram-stt" {
		t.Errorf("expected deepgram-stt, got %s", s.Name())
	}
}

func TestDeepgramSTTEmptyAlternatives(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"channels": []map[string]interface{}{}},
		})
	}))
	defer server.Close()

	s := NewDeepgramSTT("test-key", "")
	s.url = server.URL

	result, err := s.Transcribe(context.Background(), audioio.Frame{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty transcript, got %q", result)
	}
}
