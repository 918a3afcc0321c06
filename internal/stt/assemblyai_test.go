package stt

import (
	"testing"
)

// AssemblyAI's endpoints are hardcoded per-production convention (same as
// the teacher's pkg/providers/stt/assemblyai.go), so the upload/submit/poll
// round trip isn't independently testable without a live account; this
// covers construction and naming only.
func TestAssemblyAISTTName(t *testing.T) {
	s := NewAssemblyAISTT("test-key", "en")
	if s.Name() != "assemblyai-stt" {
		t.Errorf("expected assemblyai-stt, got %s", s.Name())
	}
}
