package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	tok, err := SignSessionToken("secret", "u1", "a@b.c", "PROFESSOR", "s1", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseSessionToken("secret", tok.Token, now)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u1" || claims.SessionID != "s1" || claims.Role != "PROFESSOR" || claims.Email != "a@b.c" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseSessionTokenRejectsWrongSecret(t *testing.T) {
	now := time.Now().UTC()
	tok, _ := SignSessionToken("secret", "u1", "a@b.c", "ADMIN", "s1", now, now.Add(time.Hour))
	if _, err := ParseSessionToken("other", tok.Token, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseSessionTokenRejectsTamperedPayload(t *testing.T) {
	now := time.Now().UTC()
	tok, _ := SignSessionToken("secret", "u1", "a@b.c", "PROFESSOR", "s1", now, now.Add(time.Hour))
	parts := strings.Split(tok.Token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}
	forged := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := ParseSessionToken("secret", forged, now); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseSessionTokenExpired(t *testing.T) {
	now := time.Now().UTC()
	tok, _ := SignSessionToken("secret", "u1", "a@b.c", "PROFESSOR", "s1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	if _, err := ParseSessionToken("secret", tok.Token, now); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatalf("expected 64 hex chars")
	}
}

func TestPasswordHelpers(t *testing.T) {
	hash, err := HashPassword("s3cret!", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cret!") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
	if err := CheckPasswordPolicy("12345"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := CheckPasswordPolicy("123456"); err != nil {
		t.Fatalf("unexpected policy error: %v", err)
	}
	if err := CheckPasswordPolicy(strings.Repeat("x", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	// multi-byte runes count in bytes against the bcrypt limit
	if err := CheckPasswordPolicy(strings.Repeat("é", 40)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong for 80 bytes, got %v", err)
	}
}
