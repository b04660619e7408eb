package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION TOKENS
// Compact signed tokens: base64url(claims JSON) + "." + base64url(HMAC-SHA256).
// Stateless, so no session storage; revocation is out of scope and tokens
// simply expire.
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrTokenInvalid is returned for malformed or tampered tokens.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpired is returned for well-formed but expired tokens.
	ErrTokenExpired = errors.New("token is expired")
)

// TokenClaims is the authenticated identity carried by a token.
type TokenClaims struct {
	// UserID is the authenticated user.
	UserID string `json:"sub"`

	// Role is the user's role at issue time.
	Role string `json:"role"`

	// IssuedAt is the unix issue timestamp.
	IssuedAt int64 `json:"iat"`

	// ExpiresAt is the unix expiry timestamp.
	ExpiresAt int64 `json:"exp"`
}

// TokenCodec signs and verifies session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec creates a codec with the given signing secret and token TTL.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign issues a token for the given user.
func (c *TokenCodec) Sign(userID, role string) (string, error) {
	now := c.now().UTC()
	claims := TokenClaims{
		UserID:    userID,
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(c.ttl).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.signature(encoded), nil
}

// Verify checks the token's signature and expiry and returns its claims.
func (c *TokenCodec) Verify(token string) (*TokenClaims, error) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return nil, ErrTokenInvalid
	}

	expected := c.signature(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, ErrTokenInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	if c.now().UTC().Unix() >= claims.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (c *TokenCodec) signature(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
