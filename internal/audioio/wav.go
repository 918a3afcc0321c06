package audioio

import (
	"bytes"
	"encoding/binary"
)

// NewWavBuffer wraps raw PCM16LE mono samples in a minimal RIFF/WAVE
// container, for backends (STT upload APIs) that require a file rather than
// a raw stream. Adapted from the teacher's pkg/audio/wav.go, generalized to
// accept Frame instead of a bare []byte.
func NewWavBuffer(pcm Frame, sampleRate int) []byte {
	buf := new(bytes.Buffer)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                  // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                   // audio format: PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))                   // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))          // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))        // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))                   // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))                  // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
