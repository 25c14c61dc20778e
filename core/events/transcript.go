package events

import (
	"github.com/mlenarte/interview-core/core/realtime"
	"github.com/mlenarte/interview-core/core/transcription"
)

const (
	// KindTranscriptPartialUpdated identifies mutable in-progress utterance updates.
	KindTranscriptPartialUpdated Kind = "transcript.partial_updated"
	// KindTranscriptSegmentFinalized identifies finalized, stored utterances.
	KindTranscriptSegmentFinalized Kind = "transcript.segment_finalized"
)

// TranscriptPartialUpdated carries the mutable in-progress utterance snapshot.
type TranscriptPartialUpdated struct {
	Base
	Text    string
	Speaker realtime.Speaker
}

// NewTranscriptPartialUpdated creates a partial transcript update event.
func NewTranscriptPartialUpdated(text string, speaker realtime.Speaker) TranscriptPartialUpdated {
	return TranscriptPartialUpdated{Base: NewBase(KindTranscriptPartialUpdated), Text: text, Speaker: speaker}
}

// TranscriptSegmentFinalized carries a finalized utterance segment.
type TranscriptSegmentFinalized struct {
	Base
	Segment transcription.Segment
}

// NewTranscriptSegmentFinalized creates a finalized segment event.
func NewTranscriptSegmentFinalized(segment transcription.Segment) TranscriptSegmentFinalized {
	return TranscriptSegmentFinalized{Base: NewBase(KindTranscriptSegmentFinalized), Segment: segment}
}
