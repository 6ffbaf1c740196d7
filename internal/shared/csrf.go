package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// CSRFSessionKey is the key used to persist tokens in the session store.
	CSRFSessionKey = "csrf_token"
	// CSRFHeader carries the token on state-changing requests.
	CSRFHeader = "X-CSRF-Token"

	nonceBytes = 18
)

var (
	// ErrCSRFTokenMissing is returned when either side of the comparison is empty.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch is returned when the header does not match the session token.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// CSRFManager issues and verifies synchronizer tokens. A token is "<nonce>.<mac>" where the mac
// binds the nonce to the session id, so a token lifted from another session never verifies.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager signing with secret.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// EnsureToken returns the session's token, minting one on first use.
func (m *CSRFManager) EnsureToken(ctx context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", ErrSessionMissing
	}
	if token := sess.Get(CSRFSessionKey); token != "" && m.signedFor(sess.ID, token) {
		return token, nil
	}
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("shared: csrf nonce: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(nonce)
	token := encoded + "." + m.sign(sess.ID, encoded)
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

// VerifyToken compares the supplied token with the session token.
func (m *CSRFManager) VerifyToken(ctx context.Context, sess *Session, token string) error {
	if sess == nil {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" || token == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) || !m.signedFor(sess.ID, token) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

// VerifyRequest checks the X-CSRF-Token header against the session stored in the request context.
func (m *CSRFManager) VerifyRequest(r *http.Request) error {
	return m.VerifyToken(r.Context(), SessionFromContext(r.Context()), r.Header.Get(CSRFHeader))
}

// Clear drops the session's token; the next EnsureToken issues a fresh one.
func (m *CSRFManager) Clear(sess *Session) {
	if sess == nil {
		return
	}
	sess.Delete(CSRFSessionKey)
}

func (m *CSRFManager) sign(sessionID, nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sessionID))
	_, _ = mac.Write([]byte{'|'})
	_, _ = mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *CSRFManager) signedFor(sessionID, token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(m.sign(sessionID, nonce)))
}
