package audio

import "testing"

func TestFormatFraming(t *testing.T) {
	cases := []struct {
		format   Format
		byteSize int
		silence  byte
	}{
		{EncodingLinear16, 2, 0},
		{EncodingMulaw, 1, 0xFF},
		{EncodingALaw, 1, 0x55},
	}
	for _, c := range cases {
		if got := c.format.ByteSize(); got != c.byteSize {
			t.Fatalf("%s: expected %d bytes per sample, got %d", c.format, c.byteSize, got)
		}
		info := EncodingInfo{SampleRate: DefaultSampleRate, Format: c.format}
		if got := info.SilenceValue(); got != c.silence {
			t.Fatalf("%s: expected silence byte %#x, got %#x", c.format, c.silence, got)
		}
	}

	if got := Format("flac").ByteSize(); got != -1 {
		t.Fatalf("expected -1 for an unknown format, got %d", got)
	}
}

func TestEncodingInfoZeroness(t *testing.T) {
	if DefaultEncodingInfo().IsZero() {
		t.Fatal("expected the default encoding info to be usable")
	}
	if !(EncodingInfo{}).IsZero() {
		t.Fatal("expected an empty encoding info to be zero")
	}
	if !(EncodingInfo{SampleRate: DefaultSampleRate}).IsZero() {
		t.Fatal("expected a missing format to read as zero")
	}
}
