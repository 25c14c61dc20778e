package transcription

import (
	"testing"
	"time"

	"github.com/mlenarte/interview-core/core/realtime"
)

func TestBufferAssemblesCumulativePartialsIntoOneSegment(t *testing.T) {
	finalized := []Segment{}
	buffer := NewBuffer(WithSegmentCallback(func(segment Segment) {
		finalized = append(finalized, segment)
	}))

	base := time.Now()
	buffer.Process(realtime.TranscriptionEvent{Text: "Hel", Speaker: realtime.SpeakerParticipant, Timestamp: base})
	buffer.Process(realtime.TranscriptionEvent{Text: "Hello there", Speaker: realtime.SpeakerParticipant, Timestamp: base.Add(time.Second)})
	buffer.Process(realtime.TranscriptionEvent{
		Text: "Hello there.", IsFinal: true,
		Speaker: realtime.SpeakerParticipant, Confidence: 0.95,
		Timestamp: base.Add(2 * time.Second),
	})

	if len(finalized) != 1 {
		t.Fatalf("expected exactly one finalized segment, got %d", len(finalized))
	}
	segment := finalized[0]
	if segment.Text != "Hello there." {
		t.Fatalf("expected final cumulative text, got %q", segment.Text)
	}
	if segment.Reason != ReasonAPIFinalized {
		t.Fatalf("expected apiFinalized reason, got %q", segment.Reason)
	}
	if segment.Speaker != realtime.SpeakerParticipant {
		t.Fatalf("expected participant speaker, got %q", segment.Speaker)
	}
	if !segment.StartedAt.Equal(base) {
		t.Fatalf("expected segment to start at the first partial, got %v", segment.StartedAt)
	}

	stats := buffer.Statistics()
	if stats.TotalPartialEvents != 2 || stats.TotalFinalEvents != 1 {
		t.Fatalf("expected counters 2 partial / 1 final, got %+v", stats)
	}
	if stats.HasPendingPartial {
		t.Fatalf("expected no pending partial after the final event")
	}
}

func TestBufferReplacesPartialTextInsteadOfAppending(t *testing.T) {
	buffer := NewBuffer()

	buffer.Process(realtime.TranscriptionEvent{Text: "one two", Timestamp: time.Now()})
	buffer.Process(realtime.TranscriptionEvent{Text: "one two three", Timestamp: time.Now()})

	partial := buffer.Partial()
	if partial == nil {
		t.Fatalf("expected a pending partial")
	}
	if partial.Text != "one two three" {
		t.Fatalf("expected replace semantics, got %q", partial.Text)
	}
}

func TestBufferAutoFinalizesRunawayPartialOnTimeout(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	finalized := []Segment{}
	buffer := NewBuffer(
		WithClock(clock),
		WithSegmentCallback(func(segment Segment) { finalized = append(finalized, segment) }),
	)

	buffer.Process(realtime.TranscriptionEvent{Text: "a very long monologue", Speaker: realtime.SpeakerParticipant, Timestamp: now})

	now = now.Add(31 * time.Second)
	buffer.Process(realtime.TranscriptionEvent{Text: "fresh thought", Speaker: realtime.SpeakerParticipant, Timestamp: now})

	if len(finalized) != 1 {
		t.Fatalf("expected the runaway partial to be finalized, got %d segments", len(finalized))
	}
	if finalized[0].Reason != ReasonTimeout {
		t.Fatalf("expected timeout reason, got %q", finalized[0].Reason)
	}
	if finalized[0].Confidence != 0.7 {
		t.Fatalf("expected timeout confidence 0.7, got %f", finalized[0].Confidence)
	}

	partial := buffer.Partial()
	if partial == nil || partial.Text != "fresh thought" {
		t.Fatalf("expected a new partial from the incoming event, got %+v", partial)
	}
}

func TestBufferFinalizesOnSpeakerChange(t *testing.T) {
	finalized := []Segment{}
	buffer := NewBuffer(WithSegmentCallback(func(segment Segment) {
		finalized = append(finalized, segment)
	}))

	base := time.Now()
	buffer.Process(realtime.TranscriptionEvent{Text: "so tell me about", Speaker: realtime.SpeakerInterviewer, Confidence: 0.8, Timestamp: base})
	buffer.Process(realtime.TranscriptionEvent{Text: "well it started", Speaker: realtime.SpeakerParticipant, Confidence: 0.85, Timestamp: base.Add(time.Second)})

	if len(finalized) != 1 {
		t.Fatalf("expected the interviewer partial to be finalized, got %d segments", len(finalized))
	}
	if finalized[0].Reason != ReasonSpeakerChange {
		t.Fatalf("expected speakerChange reason, got %q", finalized[0].Reason)
	}
	if finalized[0].Speaker != realtime.SpeakerInterviewer {
		t.Fatalf("expected the prior speaker on the segment, got %q", finalized[0].Speaker)
	}
	if finalized[0].Confidence != 0.85 {
		t.Fatalf("expected the incoming event's confidence, got %f", finalized[0].Confidence)
	}

	partial := buffer.Partial()
	if partial == nil || partial.Speaker != realtime.SpeakerParticipant {
		t.Fatalf("expected a new participant partial, got %+v", partial)
	}
}

func TestBufferDropsTooShortFinals(t *testing.T) {
	callbackCalls := 0
	buffer := NewBuffer(WithSegmentCallback(func(Segment) { callbackCalls++ }))

	buffer.Process(realtime.TranscriptionEvent{Text: "m", IsFinal: true, Timestamp: time.Now()})

	if callbackCalls != 0 {
		t.Fatalf("expected no callback for a dropped segment")
	}
	if got := len(buffer.Segments()); got != 0 {
		t.Fatalf("expected no stored segments, got %d", got)
	}

	stats := buffer.Statistics()
	if stats.DroppedPartials != 1 {
		t.Fatalf("expected one dropped partial, got %d", stats.DroppedPartials)
	}
}

func TestBufferFlushFinalizesPendingPartial(t *testing.T) {
	finalized := []Segment{}
	buffer := NewBuffer(WithSegmentCallback(func(segment Segment) {
		finalized = append(finalized, segment)
	}))

	buffer.Process(realtime.TranscriptionEvent{Text: "unfinished sentence", Speaker: realtime.SpeakerParticipant, Timestamp: time.Now()})
	buffer.Flush(time.Now())

	if len(finalized) != 1 {
		t.Fatalf("expected flush to finalize the partial, got %d segments", len(finalized))
	}
	if finalized[0].Reason != ReasonManualFlush {
		t.Fatalf("expected manualFlush reason, got %q", finalized[0].Reason)
	}
	if finalized[0].Confidence != 0.8 {
		t.Fatalf("expected manual flush confidence 0.8, got %f", finalized[0].Confidence)
	}
}

func TestBufferFlushWithoutPartialIsANoop(t *testing.T) {
	buffer := NewBuffer()

	buffer.Flush(time.Now())

	if stats := buffer.Statistics(); stats.SegmentCount != 0 || stats.DroppedPartials != 0 {
		t.Fatalf("expected an empty buffer to stay empty, got %+v", stats)
	}
}

func TestBufferClearResetsCountersAndSegments(t *testing.T) {
	buffer := NewBuffer()

	buffer.Process(realtime.TranscriptionEvent{Text: "hello world", Timestamp: time.Now()})
	buffer.Process(realtime.TranscriptionEvent{Text: "hello world.", IsFinal: true, Timestamp: time.Now()})
	buffer.Clear()

	stats := buffer.Statistics()
	if stats.TotalPartialEvents != 0 || stats.TotalFinalEvents != 0 || stats.SegmentCount != 0 {
		t.Fatalf("expected cleared statistics, got %+v", stats)
	}
	if buffer.Partial() != nil {
		t.Fatalf("expected no pending partial after clear")
	}
}

func TestBufferCallbacksRunOutsideTheLock(t *testing.T) {
	var buffer *Buffer
	var observedOnSegment Statistics
	var observedOnPartial *Partial
	buffer = NewBuffer(
		WithSegmentCallback(func(Segment) {
			// Re-entering the buffer here deadlocks if the callback were
			// still invoked under the internal mutex.
			observedOnSegment = buffer.Statistics()
		}),
		WithPartialCallback(func(Partial) {
			observedOnPartial = buffer.Partial()
		}),
	)

	buffer.Process(realtime.TranscriptionEvent{Text: "still talking", Timestamp: time.Now()})
	if observedOnPartial == nil || observedOnPartial.Text != "still talking" {
		t.Fatalf("expected the partial callback to read back the pending partial, got %+v", observedOnPartial)
	}

	buffer.Process(realtime.TranscriptionEvent{Text: "still talking.", IsFinal: true, Timestamp: time.Now()})
	if observedOnSegment.SegmentCount != 1 {
		t.Fatalf("expected the segment callback to observe the stored segment, got %+v", observedOnSegment)
	}
}

func TestBufferFinalWithoutSpeakerFallsBackToTrackedSpeaker(t *testing.T) {
	buffer := NewBuffer()

	base := time.Now()
	buffer.Process(realtime.TranscriptionEvent{Text: "something", Speaker: realtime.SpeakerInterviewer, Timestamp: base})
	buffer.Process(realtime.TranscriptionEvent{Text: "something final", IsFinal: true, Timestamp: base.Add(time.Second)})

	segments := buffer.Segments()
	if len(segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(segments))
	}
	if segments[0].Speaker != realtime.SpeakerInterviewer {
		t.Fatalf("expected the tracked speaker, got %q", segments[0].Speaker)
	}
}

func TestBufferFinalWithNoSpeakerAnywhereIsUnknown(t *testing.T) {
	buffer := NewBuffer()

	buffer.Process(realtime.TranscriptionEvent{Text: "who said this", IsFinal: true, Timestamp: time.Now()})

	segments := buffer.Segments()
	if len(segments) != 1 {
		t.Fatalf("expected one segment, got %d", len(segments))
	}
	if segments[0].Speaker != realtime.SpeakerUnknown {
		t.Fatalf("expected unknown speaker, got %q", segments[0].Speaker)
	}
}
