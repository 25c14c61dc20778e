package audio

// DefaultSampleRate is the capture rate both microphone backends open their
// devices at: 16 kHz mono, which the transcription service accepts directly.
const DefaultSampleRate = 16000

// Format identifies the sample encoding of a capture stream. Both bundled
// capture clients produce linear16; the telephony formats exist so recordings
// from external sources can ride the same streaming path.
type Format string

const (
	EncodingLinear16 Format = "linear16"
	EncodingMulaw    Format = "mulaw"
	EncodingALaw     Format = "alaw"
)

func (f Format) Name() string { return string(f) }

// ByteSize returns the bytes per sample, or -1 for an unknown format.
func (f Format) ByteSize() int {
	switch f {
	case EncodingLinear16:
		return 2
	case EncodingMulaw, EncodingALaw:
		return 1
	}
	return -1
}

// EncodingInfo describes the PCM framing a capture client produces, so the
// streaming side can negotiate matching parameters and synthesize silence
// while the microphone is paused.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func DefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

// SilenceValue is the byte value that encodes digital silence in the format.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingMulaw:
		return 0xFF
	case EncodingALaw:
		return 0x55
	default:
		return 0
	}
}
