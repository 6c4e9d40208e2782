package testsupport

import (
	"context"
	"testing"

	"contentfactory/internal/config"
	"contentfactory/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// SeedTopic inserts a topic and fails the test on error.
func SeedTopic(t testing.TB, s *store.Store, topic store.Topic) *store.Topic {
	t.Helper()

	created, err := s.CreateTopic(context.Background(), topic)
	if err != nil {
		t.Fatalf("seed topic: %v", err)
	}
	return created
}

// SeedContentPiece inserts a content piece and fails the test on error.
func SeedContentPiece(t testing.TB, s *store.Store, piece store.ContentPiece) *store.ContentPiece {
	t.Helper()

	created, err := s.CreateContentPiece(context.Background(), piece)
	if err != nil {
		t.Fatalf("seed content piece: %v", err)
	}
	return created
}
