package utils // package utils provides helpers for session tokens and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "lab-reservation"

var (
	// ErrTokenInvalid covers bad signatures, wrong algorithms and malformed claims.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned when the exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// SessionClaims is the payload of a signed session token. The token only
// references a server-side session; it is never trusted on its own.
type SessionClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionToken is a signed token together with its expiry.
type SessionToken struct {
	Token string    // serialized JWT
	Exp   time.Time // UTC expiration time
}

// SignSessionToken builds and signs an HS256 JWT embedding the user and
// session identifiers with the given expiry.
func SignSessionToken(secret, userID, email, role, sessionID string, now, exp time.Time) (SessionToken, error) {
	if secret == "" {
		return SessionToken{}, ErrTokenInvalid
	}
	claims := SessionClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(), // distinct tokens even within one second
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp.UTC()}, nil
}

// ParseSessionToken verifies signature, algorithm, issuer and expiry and
// returns the claims. now is used as the verification time.
func ParseSessionToken(secret, raw string, now time.Time) (SessionClaims, error) {
	if secret == "" || strings.TrimSpace(raw) == "" {
		return SessionClaims{}, ErrTokenInvalid
	}
	var claims SessionClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(raw, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrTokenExpired
		}
		return SessionClaims{}, ErrTokenInvalid
	}
	if claims.UserID == "" || claims.SessionID == "" || claims.Subject != claims.UserID {
		return SessionClaims{}, ErrTokenInvalid
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a raw token. Only the digest is
// stored so a leaked sessions table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
