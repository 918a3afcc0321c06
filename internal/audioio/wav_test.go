package audioio

import (
	"context"
	"encoding/binary"
	"testing"
	"time"
)

func TestNewWavBufferHeader(t *testing.T) {
	pcm := Frame{1, 2, 3, 4, 5, 6}
	out := NewWavBuffer(pcm, SampleRate)

	if string(out[0:4]) != "RIFF" {
		t.Fatalf("expected RIFF chunk id, got %q", out[0:4])
	}
	if string(out[8:12]) != "WAVE" {
		t.Fatalf("expected WAVE format, got %q", out[8:12])
	}
	if string(out[12:16]) != "fmt " {
		t.Fatalf("expected fmt chunk, got %q", out[12:16])
	}
	if string(out[36:40]) != "data" {
		t.Fatalf("expected data chunk, got %q", out[36:40])
	}

	dataLen := binary.LittleEndian.Uint32(out[40:44])
	if int(dataLen) != len(pcm) {
		t.Fatalf("data length = %d, want %d", dataLen, len(pcm))
	}

	riffLen := binary.LittleEndian.Uint32(out[4:8])
	if int(riffLen) != 36+len(pcm) {
		t.Fatalf("riff length = %d, want %d", riffLen, 36+len(pcm))
	}

	sampleRate := binary.LittleEndian.Uint32(out[24:28])
	if sampleRate != SampleRate {
		t.Fatalf("sample rate = %d, want %d", sampleRate, SampleRate)
	}

	if string(out[44:]) != string(pcm) {
		t.Fatalf("payload mismatch")
	}
}

func TestFrameSize(t *testing.T) {
	cases := []struct {
		ms   int
		want int
	}{
		{20, 640},
		{80, 2560},
		{100, 3200},
	}
	for _, c := range cases {
		got := FrameSize(time.Duration(c.ms) * time.Millisecond)
		if got != c.want {
			t.Errorf("FrameSize(%dms) = %d, want %d", c.ms, got, c.want)
		}
	}
}

func TestSliceStreamExhaustion(t *testing.T) {
	frames := []Frame{{1, 2}, {3, 4}}
	s := NewSliceStream(frames)

	ctx := context.Background()

	f, err := s.Next(ctx)
	if err != nil || len(f) != 2 {
		t.Fatalf("unexpected first frame: %v %v", f, err)
	}
	f, err = s.Next(ctx)
	if err != nil || len(f) != 2 {
		t.Fatalf("unexpected second frame: %v %v", f, err)
	}
	if _, err := s.Next(ctx); err == nil {
		t.Fatal("expected EOF after exhausting frames")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := s.Next(ctx); err == nil {
		t.Fatal("expected error from Next after Close")
	}
}
