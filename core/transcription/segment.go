package transcription

import (
	"time"

	"github.com/google/uuid"
	"github.com/mlenarte/interview-core/core/realtime"
)

// FinalizationReason records why a partial transcription became a segment.
type FinalizationReason string

const (
	ReasonAPIFinalized  FinalizationReason = "apiFinalized"
	ReasonSpeakerChange FinalizationReason = "speakerChange"
	ReasonTimeout       FinalizationReason = "timeout"
	ReasonManualFlush   FinalizationReason = "manualFlush"
)

// Segment is an immutable finalized transcript unit.
type Segment struct {
	ID         uuid.UUID
	Text       string
	Speaker    realtime.Speaker
	Confidence float64
	StartedAt  time.Time
	EndedAt    time.Time
	Reason     FinalizationReason
}

// Partial is the mutable in-progress transcript for the current speaker turn.
// Text carries cumulative replace-semantics: each update supersedes the last.
type Partial struct {
	Text       string
	Speaker    realtime.Speaker
	Confidence float64
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Statistics is a point-in-time snapshot of buffer counters.
type Statistics struct {
	TotalPartialEvents int
	TotalFinalEvents   int
	DroppedPartials    int
	SegmentCount       int
	HasPendingPartial  bool
}
