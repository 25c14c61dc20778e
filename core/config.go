package session

import (
	"strings"
	"time"
)

// InterviewMode selects the coaching posture of the realtime service.
type InterviewMode string

const (
	ModeDiscovery InterviewMode = "discovery"
	ModeUsability InterviewMode = "usability"
	ModeFollowUp  InterviewMode = "follow_up"
)

// Config is the immutable per-session configuration. It is created by the
// caller before Configure and never mutated afterwards.
type Config struct {
	APIKey       string
	SystemPrompt string
	Topics       []string
	Mode         InterviewMode

	Title           string
	ParticipantName string
	ProjectName     string
	PlannedDuration time.Duration

	InterimResults bool
	Diarize        bool
}

// Validate checks the config for values the session could never run with.
func (c Config) Validate() *SessionError {
	if c.PlannedDuration < 0 {
		return newSessionError(ErrInvalidConfiguration, "planned duration must not be negative", nil)
	}
	switch c.Mode {
	case "", ModeDiscovery, ModeUsability, ModeFollowUp:
	default:
		return newSessionError(ErrInvalidConfiguration, "unknown interview mode "+string(c.Mode), nil)
	}
	for _, topic := range c.Topics {
		if strings.TrimSpace(topic) == "" {
			return newSessionError(ErrInvalidConfiguration, "topics must not be blank", nil)
		}
	}
	return nil
}
