package users

import (
	"context"
	"errors"
	"testing"

	"github.com/robalobadob/hiddenpicture/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, "  alice_01 ", "correct horse")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "alice_01" {
		t.Errorf("Username = %q", u.Username)
	}
	if len(u.ID) != 22 {
		t.Errorf("ID length = %d, want 22", len(u.ID))
	}

	if _, err := s.Create(ctx, "ALICE_01", "another pass"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate err = %v, want ErrUsernameTaken", err)
	}

	got, err := s.Authenticate(ctx, "Alice_01", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %q, want %q", got.ID, u.ID)
	}
	if _, err := s.Authenticate(ctx, "alice_01", "wrong pass"); err == nil {
		t.Error("wrong password accepted")
	}
}

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		user, pw string
		ok       bool
	}{
		{"bob", "12345678", true},
		{"bo", "12345678", false},
		{"bob!", "12345678", false},
		{"bob", "short", false},
	}
	for _, tt := range tests {
		if err := validateSignup(tt.user, tt.pw); (err == nil) != tt.ok {
			t.Errorf("validateSignup(%q, %q) = %v, want ok=%v", tt.user, tt.pw, err, tt.ok)
		}
	}
}

func TestStats(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, "carol", "password123")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_ = s.RoundStarted(ctx, u.ID)
	_ = s.PointFound(ctx, u.ID, false)
	_ = s.PointFound(ctx, u.ID, true)

	got, err := s.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if got.RoundsStarted != 1 || got.PointsFound != 2 || got.RoundsCleared != 1 {
		t.Errorf("stats = %d/%d/%d, want 1/2/1", got.RoundsStarted, got.PointsFound, got.RoundsCleared)
	}
}
