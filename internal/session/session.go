package session

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the Authorization value of the logged in user. Invalidate
// clears it and runs the logout hook once.
type Session struct {
	mu       sync.RWMutex
	token    string
	onLogout func()
	once     sync.Once
}

// New returns a session for token. onLogout may be nil.
func New(token string, onLogout func()) *Session {
	return &Session{token: strings.TrimSpace(token), onLogout: onLogout}
}

// Token returns the Authorization header value, empty after Invalidate.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Invalidate() {
	s.once.Do(func() {
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		if s.onLogout != nil {
			s.onLogout()
		}
	})
}

// Claims reads the claims of a JWT token without verifying its signature.
// The API is the authority on validity; the client only looks at expiry.
func Claims(token string) (*jwt.RegisteredClaims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether the session token is a JWT whose exp is before
// now. Opaque tokens never expire client side.
func (s *Session) Expired(now time.Time) bool {
	tok := s.Token()
	if tok == "" {
		return true
	}
	claims, err := Claims(tok)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
