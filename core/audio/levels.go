package audio

import "math"

// Levels is a point-in-time loudness snapshot of the input signal, normalized
// to [0, 1].
type Levels struct {
	RMS  float64
	Peak float64
}

func (l Levels) IsZero() bool { return l.RMS == 0 && l.Peak == 0 }

// LevelsFromPCM16 computes a level snapshot from a little-endian linear16
// chunk. Odd trailing bytes are ignored.
func LevelsFromPCM16(chunk []byte) Levels {
	sampleCount := len(chunk) / 2
	if sampleCount == 0 {
		return Levels{}
	}

	var sumSquares float64
	var peak float64
	for i := 0; i < sampleCount*2; i += 2 {
		sample := float64(int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)) / math.MaxInt16
		sumSquares += sample * sample
		if abs := math.Abs(sample); abs > peak {
			peak = abs
		}
	}

	return Levels{
		RMS:  math.Sqrt(sumSquares / float64(sampleCount)),
		Peak: peak,
	}
}
