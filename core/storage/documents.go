package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/mlenarte/interview-core/core/realtime"
)

// Utterance is one persisted, finalized transcript unit tied to a session.
type Utterance struct {
	ID         uuid.UUID        `json:"id"`
	SessionID  uuid.UUID        `json:"sessionId"`
	Speaker    realtime.Speaker `json:"speaker"`
	Text       string           `json:"text"`
	Confidence float64          `json:"confidence"`
	StartedAt  time.Time        `json:"startedAt"`
	EndedAt    time.Time        `json:"endedAt"`
	Reason     string           `json:"finalizationReason"`
}

// Session is the document-style aggregate for one interview run.
type Session struct {
	ID                   uuid.UUID   `json:"id"`
	Title                string      `json:"title,omitempty"`
	ParticipantName      string      `json:"participantName,omitempty"`
	ProjectName          string      `json:"projectName,omitempty"`
	Mode                 string      `json:"mode,omitempty"`
	Topics               []string    `json:"topics,omitempty"`
	StartedAt            time.Time   `json:"startedAt"`
	EndedAt              *time.Time  `json:"endedAt,omitempty"`
	TotalDurationSeconds float64     `json:"totalDurationSeconds"`
	Utterances           []Utterance `json:"utterances"`
}
