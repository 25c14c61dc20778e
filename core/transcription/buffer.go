package transcription

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mlenarte/interview-core/core/realtime"
)

const (
	// maxPartialAge bounds how long a partial may accumulate before it is
	// force-finalized as a runaway.
	maxPartialAge = 30 * time.Second
	// minFinalLength is the minimum meaningful finalized text length.
	minFinalLength = 2

	timeoutConfidence     = 0.7
	manualFlushConfidence = 0.8
)

// Buffer assembles a session's stream of transcription events into finalized,
// speaker-attributed segments. It is the single point of serialization for
// transcript state: events must be fed from one goroutine, or are serialized
// by the internal mutex in arrival order.
type Buffer struct {
	mu sync.Mutex

	partial   *Partial
	finalized []Segment

	// Notifications queued under the lock and dispatched after release, so
	// slow callbacks (per-segment persistence) never stall event intake.
	pendingSegments []Segment
	pendingPartial  *Partial

	totalPartialEvents int
	totalFinalEvents   int
	droppedPartials    int

	onSegment func(Segment)
	onPartial func(Partial)
	now       func() time.Time
}

type BufferOption func(*Buffer)

// WithSegmentCallback registers the callback invoked for every stored
// finalized segment. Dropped segments do not trigger it.
func WithSegmentCallback(callback func(Segment)) BufferOption {
	return func(b *Buffer) { b.onSegment = callback }
}

// WithPartialCallback registers the callback invoked whenever the pending
// partial changes.
func WithPartialCallback(callback func(Partial)) BufferOption {
	return func(b *Buffer) { b.onPartial = callback }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) BufferOption {
	return func(b *Buffer) { b.now = now }
}

func NewBuffer(opts ...BufferOption) *Buffer {
	b := &Buffer{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process consumes one transcription event. A runaway partial is finalized
// with the timeout reason before the event itself is handled.
func (b *Buffer) Process(event realtime.TranscriptionEvent) {
	b.mu.Lock()
	if b.partial != nil && b.now().Sub(b.partial.StartedAt) > maxPartialAge {
		b.finalizePartial(ReasonTimeout, timeoutConfidence, b.now())
	}

	if event.IsFinal {
		b.processFinal(event)
	} else {
		b.processPartial(event)
	}
	segments, partial := b.takePendingLocked()
	b.mu.Unlock()

	b.dispatch(segments, partial)
}

func (b *Buffer) processFinal(event realtime.TranscriptionEvent) {
	b.totalFinalEvents++

	speaker := event.Speaker
	if speaker == "" || speaker == realtime.SpeakerUnknown {
		if b.partial != nil && b.partial.Speaker != "" {
			speaker = b.partial.Speaker
		} else {
			speaker = realtime.SpeakerUnknown
		}
	}

	startedAt := event.Timestamp
	if b.partial != nil {
		startedAt = b.partial.StartedAt
	}

	b.partial = nil
	b.storeSegment(Segment{
		ID:         uuid.New(),
		Text:       event.Text,
		Speaker:    speaker,
		Confidence: event.Confidence,
		StartedAt:  startedAt,
		EndedAt:    event.Timestamp,
		Reason:     ReasonAPIFinalized,
	})
}

func (b *Buffer) processPartial(event realtime.TranscriptionEvent) {
	b.totalPartialEvents++

	if b.partial != nil &&
		event.Speaker != "" && b.partial.Speaker != "" &&
		event.Speaker != realtime.SpeakerUnknown && b.partial.Speaker != realtime.SpeakerUnknown &&
		event.Speaker != b.partial.Speaker {
		b.finalizePartial(ReasonSpeakerChange, event.Confidence, event.Timestamp)
	}

	if b.partial == nil {
		timestamp := event.Timestamp
		if timestamp.IsZero() {
			timestamp = b.now()
		}
		b.partial = &Partial{
			Text:       event.Text,
			Speaker:    event.Speaker,
			Confidence: event.Confidence,
			StartedAt:  timestamp,
			UpdatedAt:  timestamp,
		}
		snapshot := *b.partial
		b.pendingPartial = &snapshot
		return
	}

	// The upstream service sends cumulative text, so the partial is replaced
	// rather than appended to.
	b.partial.Text = event.Text
	b.partial.Confidence = event.Confidence
	b.partial.UpdatedAt = event.Timestamp
	if event.Speaker != "" {
		b.partial.Speaker = event.Speaker
	}
	snapshot := *b.partial
	b.pendingPartial = &snapshot
}

// Flush force-finalizes any pending partial, typically on session stop.
func (b *Buffer) Flush(at time.Time) {
	b.mu.Lock()
	if b.partial == nil {
		b.mu.Unlock()
		return
	}
	b.finalizePartial(ReasonManualFlush, manualFlushConfidence, at)
	segments, partial := b.takePendingLocked()
	b.mu.Unlock()

	b.dispatch(segments, partial)
}

// Clear resets all buffers and counters for a fresh session.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial = nil
	b.finalized = nil
	b.pendingSegments = nil
	b.pendingPartial = nil
	b.totalPartialEvents = 0
	b.totalFinalEvents = 0
	b.droppedPartials = 0
}

// finalizePartial converts the pending partial into a segment. Callers hold
// the mutex.
func (b *Buffer) finalizePartial(reason FinalizationReason, confidence float64, at time.Time) {
	partial := b.partial
	b.partial = nil
	if partial == nil {
		return
	}

	speaker := partial.Speaker
	if speaker == "" {
		speaker = realtime.SpeakerUnknown
	}

	b.storeSegment(Segment{
		ID:         uuid.New(),
		Text:       partial.Text,
		Speaker:    speaker,
		Confidence: confidence,
		StartedAt:  partial.StartedAt,
		EndedAt:    at,
		Reason:     reason,
	})
}

func (b *Buffer) storeSegment(segment Segment) {
	if len(segment.Text) < minFinalLength {
		b.droppedPartials++
		return
	}

	b.finalized = append(b.finalized, segment)
	b.pendingSegments = append(b.pendingSegments, segment)
}

// takePendingLocked drains the notifications queued by the mutation paths.
func (b *Buffer) takePendingLocked() ([]Segment, *Partial) {
	segments := b.pendingSegments
	b.pendingSegments = nil
	partial := b.pendingPartial
	b.pendingPartial = nil
	return segments, partial
}

// dispatch runs the registered callbacks without holding the lock. Segments
// are delivered before the partial so a speaker-change finalization is seen
// ahead of the new turn's first partial.
func (b *Buffer) dispatch(segments []Segment, partial *Partial) {
	if b.onSegment != nil {
		for _, segment := range segments {
			b.onSegment(segment)
		}
	}
	if partial != nil && b.onPartial != nil {
		b.onPartial(*partial)
	}
}

// Segments returns a copy of the finalized list.
func (b *Buffer) Segments() []Segment {
	b.mu.Lock()
	defer b.mu.Unlock()

	segments := make([]Segment, len(b.finalized))
	copy(segments, b.finalized)
	return segments
}

// Partial returns a copy of the pending partial, if any.
func (b *Buffer) Partial() *Partial {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.partial == nil {
		return nil
	}
	partial := *b.partial
	return &partial
}

func (b *Buffer) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Statistics{
		TotalPartialEvents: b.totalPartialEvents,
		TotalFinalEvents:   b.totalFinalEvents,
		DroppedPartials:    b.droppedPartials,
		SegmentCount:       len(b.finalized),
		HasPendingPartial:  b.partial != nil,
	}
}
