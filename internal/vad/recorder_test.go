package vad

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

const testChunkMS = 20

func loudChunk() audioio.Frame {
	n := audioio.FrameSize(testChunkMS * time.Millisecond)
	f := make(audioio.Frame, n)
	for i := 0; i+1 < len(f); i += 2 {
		f[i] = 0x00
		f[i+1] = 0x60
	}
	return f
}

func quietChunk() audioio.Frame {
	return make(audioio.Frame, audioio.FrameSize(testChunkMS*time.Millisecond))
}

// fakeStream replays a fixed list of chunks, then an arbitrarily large tail
// of quiet chunks so tests that expect a stop-before-exhaustion condition
// don't need to size the fixture precisely.
type fakeStream struct {
	chunks []audioio.Frame
	pos    int
	tail   audioio.Frame
	closed bool
}

func newFakeStream(chunks []audioio.Frame) *fakeStream {
	return &fakeStream{chunks: chunks, tail: quietChunk()}
}

func (s *fakeStream) Next(ctx context.Context) (audioio.Frame, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.pos < len(s.chunks) {
		c := s.chunks[s.pos]
		s.pos++
		return c, nil
	}
	return s.tail, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func TestRecorderStopsOnTrailingSilence(t *testing.T) {
	chunks := []audioio.Frame{loudChunk(), loudChunk()}
	stream := newFakeStream(chunks)

	r := NewRecorder(Params{
		SilenceThreshold:     0.1,
		SilenceDurationS:     0.05, // 50ms -> ~3 quiet 20ms chunks
		MinDurationS:         0,
		MaxDurationS:         10,
		SpeechChunksRequired: 2,
	})

	out, err := r.Capture(context.Background(), stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty capture")
	}
	if !stream.closed {
		t.Fatal("expected underlying stream to be closed")
	}
}

func TestRecorderEnforcesMinDuration(t *testing.T) {
	chunks := []audioio.Frame{loudChunk(), loudChunk()}
	stream := newFakeStream(chunks)

	r := NewRecorder(Params{
		SilenceThreshold:     0.1,
		SilenceDurationS:     0.02,
		MinDurationS:         0.2, // requires at least 200ms elapsed
		MaxDurationS:         10,
		SpeechChunksRequired: 2,
	})

	out, err := r.Capture(context.Background(), stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotMS := (len(out) / audioio.BytesPerSample) * 1000 / audioio.SampleRate
	if gotMS < 200 {
		t.Fatalf("expected capture to run at least 200ms due to MinDurationS, got %dms", gotMS)
	}
}

func TestRecorderStopsAtMaxDuration(t *testing.T) {
	// All loud chunks: speech never ends naturally, so MaxDurationS must cut it off.
	loud := make([]audioio.Frame, 0, 20)
	for i := 0; i < 20; i++ {
		loud = append(loud, loudChunk())
	}
	stream := newFakeStream(loud)

	r := NewRecorder(Params{
		SilenceThreshold:     0.1,
		SilenceDurationS:     1,
		MinDurationS:         0,
		MaxDurationS:         0.1, // 100ms
		SpeechChunksRequired: 1,
	})

	out, err := r.Capture(context.Background(), stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gotMS := (len(out) / audioio.BytesPerSample) * 1000 / audioio.SampleRate
	if gotMS > 140 {
		t.Fatalf("expected capture bounded near MaxDurationS, got %dms", gotMS)
	}
	if !stream.closed {
		t.Fatal("expected underlying stream to be closed")
	}
}

func TestRecorderReturnsErrorFromExhaustedStream(t *testing.T) {
	stream := newFakeStream(nil)
	stream.closed = true // Next will return io.EOF immediately

	r := NewRecorder(Params{SilenceThreshold: 0.1, SilenceDurationS: 0.1, MaxDurationS: 1, SpeechChunksRequired: 1})

	_, err := r.Capture(context.Background(), stream)
	if err == nil {
		t.Fatal("expected error from exhausted stream")
	}
}
