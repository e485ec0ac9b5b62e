package credential

import "time"

// Session is the authentication state held for the payment provider.
// A non-empty AccessToken always comes with the ExpiresAt it was issued with.
type Session struct {
	AccessToken      string    `json:"access"`
	RefreshToken     string    `json:"refresh"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"` // zero when the provider does not say
	IssuedAt         time.Time `json:"issued_at,omitempty"`
}

// Usable reports whether the access token may still be sent at now. skew
// retires the token slightly early so it does not expire in flight. When the
// issue time is known, skew is capped at half the token's lifetime.
func (s Session) Usable(now time.Time, skew time.Duration) bool {
	if s.AccessToken == "" || s.ExpiresAt.IsZero() {
		return false
	}
	if !s.IssuedAt.IsZero() {
		if half := s.ExpiresAt.Sub(s.IssuedAt) / 2; skew > half {
			skew = half
		}
	}
	return now.Before(s.ExpiresAt.Add(-skew))
}

// CanRefresh reports whether the refresh token is present and not known to be expired.
func (s Session) CanRefresh(now time.Time) bool {
	if s.RefreshToken == "" {
		return false
	}
	return s.RefreshExpiresAt.IsZero() || now.Before(s.RefreshExpiresAt)
}

// IsEmpty is true before the first acquisition.
func (s Session) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// WithoutAccess drops the access token but keeps the refresh token, used when
// the provider rejects a token we still believed valid.
func (s Session) WithoutAccess() Session {
	s.AccessToken = ""
	s.ExpiresAt = time.Time{}
	return s
}

// TokenPrefix is the only part of a token that may be logged.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
