package webui

import (
	"errors"
	"testing"
	"time"
)

func TestSessionStoreCreateAndGet(t *testing.T) {
	store := NewSessionStore(time.Hour)

	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if session.ID == "" {
		t.Fatal("created session has empty ID")
	}

	got, err := store.Get(session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != session.ID {
		t.Errorf("Get returned ID %q, want %q", got.ID, session.ID)
	}
	if store.Count() != 1 {
		t.Errorf("Count = %d, want 1", store.Count())
	}
}

func TestSessionStoreGetUnknown(t *testing.T) {
	store := NewSessionStore(time.Hour)
	if _, err := store.Get("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(-time.Minute)

	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("err = %v, want ErrSessionExpired", err)
	}
	// Expired sessions are evicted on lookup.
	if store.Count() != 0 {
		t.Errorf("Count = %d after expired lookup, want 0", store.Count())
	}
}

func TestSessionStoreDelete(t *testing.T) {
	store := NewSessionStore(time.Hour)
	session, _ := store.Create()

	store.Delete(session.ID)
	store.Delete(session.ID) // idempotent

	if _, err := store.Get(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v after delete, want ErrSessionNotFound", err)
	}
}

func TestSessionStoreCleanup(t *testing.T) {
	store := NewSessionStore(-time.Minute)
	store.Create()
	store.Create()

	if removed := store.Cleanup(); removed != 2 {
		t.Errorf("Cleanup removed %d, want 2", removed)
	}
	if store.Count() != 0 {
		t.Errorf("Count = %d after cleanup, want 0", store.Count())
	}
}
