package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseJWT(t *testing.T) {
	token, err := GenerateJWT("secret", 42, "alice", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "42" {
		t.Errorf("subject = %q, want 42", claims.Subject)
	}
}

func TestGenerateJWT_DefaultExpiration(t *testing.T) {
	token, err := GenerateJWT("secret", 1, "alice", 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < DefaultExpiration-time.Minute || ttl > DefaultExpiration {
		t.Errorf("ttl = %s, want about %s", ttl, DefaultExpiration)
	}
}

func TestParseJWT_Rejects(t *testing.T) {
	valid, _ := GenerateJWT("secret", 1, "alice", time.Hour)
	// GenerateJWT treats a negative expiration as the default, so build an expired token by hand
	past := time.Now().Add(-time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(past)},
	}).SignedString([]byte("secret"))
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}).SignedString([]byte("secret"))
	otherIssuer, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 1, Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", valid},
		{"expired", "secret", expired},
		{"missing identity", "secret", noUser},
		{"foreign issuer", "secret", otherIssuer},
		{"garbage", "secret", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJWT(tt.secret, tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestVerifier(t *testing.T) {
	v := NewVerifier("secret")
	token, _ := GenerateJWT("secret", 7, "bob", time.Hour)

	username, err := v.VerifyToken(token)
	if err != nil || username != "bob" {
		t.Fatalf("VerifyToken = %q, %v", username, err)
	}
	if _, err := v.VerifyToken("bad"); err == nil {
		t.Error("expected error for bad token")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("expected mismatch")
	}
}
