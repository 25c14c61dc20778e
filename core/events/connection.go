package events

import "github.com/mlenarte/interview-core/core/connection"

// KindConnectionQualityChanged identifies derived quality tier movements.
const KindConnectionQualityChanged Kind = "connection.quality_changed"

// ConnectionQualityChanged marks a movement of the derived quality tier.
type ConnectionQualityChanged struct {
	Base
	From connection.Quality
	To   connection.Quality
}

// NewConnectionQualityChanged creates a quality change event.
func NewConnectionQualityChanged(from, to connection.Quality) ConnectionQualityChanged {
	return ConnectionQualityChanged{Base: NewBase(KindConnectionQualityChanged), From: from, To: to}
}
