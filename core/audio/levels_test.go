package audio

import (
	"math"
	"testing"
)

func TestLevelsFromPCM16Silence(t *testing.T) {
	chunk := make([]byte, 320)

	levels := LevelsFromPCM16(chunk)

	if !levels.IsZero() {
		t.Fatalf("expected zero levels for silence, got %+v", levels)
	}
}

func TestLevelsFromPCM16FullScale(t *testing.T) {
	chunk := make([]byte, 0, 8)
	for range 4 {
		chunk = append(chunk, 0xFF, 0x7F) // +32767 little-endian
	}

	levels := LevelsFromPCM16(chunk)

	if math.Abs(levels.Peak-1.0) > 1e-6 {
		t.Fatalf("expected full-scale peak of 1.0, got %f", levels.Peak)
	}
	if math.Abs(levels.RMS-1.0) > 1e-6 {
		t.Fatalf("expected full-scale RMS of 1.0, got %f", levels.RMS)
	}
}

func TestLevelsFromPCM16EmptyChunk(t *testing.T) {
	if levels := LevelsFromPCM16(nil); !levels.IsZero() {
		t.Fatalf("expected zero levels for empty chunk, got %+v", levels)
	}
}
