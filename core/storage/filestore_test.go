package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mlenarte/interview-core/core/realtime"
)

func TestFileStoreSaveAndLoadSession(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	session := &Session{
		ID:              uuid.New(),
		Title:           "Onboarding interview",
		ParticipantName: "P-07",
		StartedAt:       time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	loaded, err := store.LoadSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if loaded.Title != session.Title || loaded.ParticipantName != session.ParticipantName {
		t.Fatalf("expected session fields to round-trip, got %+v", loaded)
	}
}

func TestFileStoreAppendUtterance(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	session := &Session{ID: uuid.New(), StartedAt: time.Now()}
	if err := store.SaveSession(context.Background(), session); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}

	utterance := Utterance{
		ID:        uuid.New(),
		SessionID: session.ID,
		Speaker:   realtime.SpeakerParticipant,
		Text:      "It took me a week to find the settings page.",
		Reason:    "apiFinalized",
	}
	if err := store.AppendUtterance(context.Background(), session.ID, utterance); err != nil {
		t.Fatalf("failed to append utterance: %v", err)
	}

	loaded, err := store.LoadSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if len(loaded.Utterances) != 1 {
		t.Fatalf("expected one utterance, got %d", len(loaded.Utterances))
	}
	if loaded.Utterances[0].Text != utterance.Text {
		t.Fatalf("expected utterance text to round-trip, got %q", loaded.Utterances[0].Text)
	}
}

func TestFileStoreAppendToMissingSessionFails(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	err = store.AppendUtterance(context.Background(), uuid.New(), Utterance{ID: uuid.New()})
	if err == nil {
		t.Fatalf("expected appending to a missing session to fail")
	}
}
