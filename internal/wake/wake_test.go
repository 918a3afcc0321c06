package wake

import (
	"testing"

	"github.com/lokutor-ai/voiceassistant/internal/audioio"
)

func loudChunk() audioio.Frame {
	f := make(audioio.Frame, 320)
	for i := 0; i+1 < len(f); i += 2 {
		f[i] = 0x00
		f[i+1] = 0x60 // large magnitude sample
	}
	return f
}

func quietChunk() audioio.Frame {
	return make(audioio.Frame, 320)
}

func TestEnergyGatedDetectorLatchesAfterMinRun(t *testing.T) {
	d := NewEnergyGatedDetector(0.1, 3)

	if d.Detect(loudChunk()) {
		t.Fatal("should not latch on first loud chunk")
	}
	if d.Detect(loudChunk()) {
		t.Fatal("should not latch on second loud chunk")
	}
	if !d.Detect(loudChunk()) {
		t.Fatal("should latch on third consecutive loud chunk")
	}
}

func TestEnergyGatedDetectorMonotonicUntilReset(t *testing.T) {
	d := NewEnergyGatedDetector(0.1, 1)

	if !d.Detect(loudChunk()) {
		t.Fatal("expected immediate latch with minRun=1")
	}
	// Quiet chunks after latching must not un-latch.
	if !d.Detect(quietChunk()) {
		t.Fatal("detector should remain latched until Reset")
	}

	d.Reset()
	if d.Detect(quietChunk()) {
		t.Fatal("expected unlatched state after Reset")
	}
}

func TestEnergyGatedDetectorRunResetsOnQuietChunk(t *testing.T) {
	d := NewEnergyGatedDetector(0.1, 2)

	d.Detect(loudChunk())
	d.Detect(quietChunk()) // breaks the run
	if d.Detect(loudChunk()) {
		t.Fatal("run should have reset after the quiet chunk, so single loud chunk must not latch")
	}
}

func TestEnergyGatedDetectorName(t *testing.T) {
	d := NewEnergyGatedDetector(0.1, 1)
	if d.Name() == "" {
		t.Fatal("expected non-empty detector name")
	}
}
