package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

// LokutorTTS streams synthesized audio over a persistent websocket
// connection, adapted from the teacher's pkg/providers/tts/lokutor.go.
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string
	voice  string
	lang   string

	mu      sync.Mutex
	conn    *websocket.Conn
	aborted bool
}

// NewLokutorTTS builds a Lokutor client for the given voice/language pair.
func NewLokutorTTS(apiKey, voice, lang string) *LokutorTTS {
	return &LokutorTTS{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		voice:  voice,
		lang:   lang,
	}
}

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	t.aborted = false
	return conn, nil
}

func (t *LokutorTTS) Synthesize(ctx context.Context, text string) (audioio.Frame, error) {
	if text == "" {
		return SilenceClip(0), nil
	}

	var out audioio.Frame
	err := t.StreamSynthesize(ctx, text, func(chunk audioio.Frame) error {
		out = append(out, chunk...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, onChunk func(audioio.Frame) error) error {
	if text == "" {
		return onChunk(SilenceClip(0))
	}

	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.aborted = false
	t.mu.Unlock()

	req := map[string]interface{}{
		"text":    text,
		"voice":   t.voice,
		"lang":    t.lang,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.dropConn()
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		if t.isAborted() {
			return nil
		}

		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.dropConn()
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(payload); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorTTS) isAborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aborted
}

func (t *LokutorTTS) dropConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = nil
}

// Abort halts the current stream synthesis loop on its next read/check.
// This closes the gap the teacher's ManagedStream left open: its
// TTSProvider interface never declared Abort, even though
// internalInterrupt called it unconditionally.
func (t *LokutorTTS) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.aborted = true
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "aborted")
		t.conn = nil
		return err
	}
	return nil
}

func (t *LokutorTTS) Name() string { return "lokutor" }
