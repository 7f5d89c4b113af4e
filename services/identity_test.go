package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/palateclub/palate/roles"
)

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "handle", "email", "fcm_token", "is_active", "created_at", "updated_at"})
}

func TestIdentityGetByEmail(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer mockDB.Close()

	svc := NewIdentityService(mockDB)
	now := time.Now()

	// Email matching is case-insensitive
	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("Alice@Example.COM").
		WillReturnRows(userRows().AddRow("u1", "Alice", "alice", "alice@example.com", "", true, now, now))

	user, err := svc.GetByEmail(context.Background(), "Alice@Example.COM")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if user.ID != "u1" || user.Handle != "alice" {
		t.Errorf("unexpected user: %+v", user)
	}

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("nobody@example.com").
		WillReturnRows(userRows())

	if _, err := svc.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, roles.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInviteTokenRoundTrip(t *testing.T) {
	token, hash, err := NewInviteToken()
	if err != nil {
		t.Fatalf("NewInviteToken failed: %v", err)
	}
	if token == "" || hash == "" || token == hash {
		t.Fatalf("bad token pair: %q %q", token, hash)
	}

	if !VerifyInviteToken(hash, token) {
		t.Error("token should verify against its own hash")
	}
	if VerifyInviteToken(hash, token+"x") {
		t.Error("tampered token must not verify")
	}

	// Tokens are single-use secrets, two issues never collide
	token2, _, err := NewInviteToken()
	if err != nil {
		t.Fatalf("second NewInviteToken failed: %v", err)
	}
	if token == token2 {
		t.Error("tokens must be unique")
	}
}
