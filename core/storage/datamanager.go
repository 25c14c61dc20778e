package storage

import (
	"context"

	"github.com/google/uuid"
)

// DataManager is the document-store contract the session core persists
// through. Implementations decide durability; the core only assumes that a
// successful SaveSession survives a restart.
type DataManager interface {
	SaveSession(ctx context.Context, session *Session) error
	LoadSession(ctx context.Context, id uuid.UUID) (*Session, error)
	AppendUtterance(ctx context.Context, sessionID uuid.UUID, utterance Utterance) error
}
