package resettoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Generator derives single-use password reset tokens from user state.
// A token carries its issuance timestamp and an HMAC over the user's ID
// and current password hash, so it can be verified by recomputation —
// no token table. Changing the password invalidates every token issued
// before the change.
type Generator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewGenerator creates a Generator. Tokens are accepted for ttl after
// issuance.
func NewGenerator(secret string, ttl time.Duration) *Generator {
	return &Generator{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Make returns a token bound to the user's current password hash.
func (g *Generator) Make(userID, passwordHash string) string {
	ts := g.now().Unix()
	return fmt.Sprintf("%s-%s", strconv.FormatInt(ts, 36), g.signature(userID, passwordHash, ts))
}

// Check reports whether token was issued for the given user state and
// is still inside the validity window.
func (g *Generator) Check(userID, passwordHash, token string) bool {
	parts := strings.SplitN(token, "-", 2)
	if len(parts) != 2 {
		return false
	}
	ts, err := strconv.ParseInt(parts[0], 36, 64)
	if err != nil {
		return false
	}

	issued := time.Unix(ts, 0)
	now := g.now()
	if issued.After(now) || now.Sub(issued) > g.ttl {
		return false
	}

	expected := g.signature(userID, passwordHash, ts)
	return hmac.Equal([]byte(expected), []byte(parts[1]))
}

func (g *Generator) signature(userID, passwordHash string, ts int64) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%s:%s:%d", userID, passwordHash, ts)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// EncodeRef converts a user ID into the URL-safe reference embedded in
// reset links alongside the token.
func EncodeRef(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// DecodeRef reverses EncodeRef.
func DecodeRef(ref string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ref)
	if err != nil {
		return "", fmt.Errorf("failed to decode user reference: %w", err)
	}
	return string(raw), nil
}
