package auth

import (
	"strings"
	"testing"
	"time"

	"imagestudio/internal/entity"
)

func TestNewManagerAndTokenLifecycle(t *testing.T) {
	mgr, err := NewManager("test-secret", "issuer", time.Minute*30)
	if err != nil {
		t.Fatalf("unexpected error creating manager: %v", err)
	}

	user := &entity.DbProfile{ID: "5f0c2a8e-7a51-4d3b-9f57-2b1d0c3e4a10", Email: "user@example.com"}
	token, expiresAt, err := mgr.GenerateToken(user)
	if err != nil {
		t.Fatalf("unexpected error generating token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if expiresAt.Before(time.Now()) {
		t.Fatal("expected future expiry time")
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("unexpected error parsing token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %s, got %s", user.ID, claims.UserID)
	}
	if !strings.EqualFold(claims.Email, user.Email) {
		t.Fatalf("expected email %s, got %s", user.Email, claims.Email)
	}
}

func TestParseTokenRejectsForeignTokens(t *testing.T) {
	mgr, _ := NewManager("test-secret", "issuer", time.Hour)
	other, _ := NewManager("other-secret", "issuer", time.Hour)
	otherIssuer, _ := NewManager("test-secret", "someone-else", time.Hour)

	user := &entity.DbProfile{ID: "u1", Email: "user@example.com"}
	for name, issuer := range map[string]*Manager{"wrong secret": other, "wrong issuer": otherIssuer} {
		token, _, err := issuer.GenerateToken(user)
		if err != nil {
			t.Fatalf("%s: generate: %v", name, err)
		}
		if _, err := mgr.ParseToken(token); err == nil {
			t.Fatalf("%s: expected parse failure", name)
		}
	}

	if _, _, err := mgr.GenerateToken(&entity.DbProfile{}); err == nil {
		t.Fatal("expected error for profile without id")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("   ", "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
