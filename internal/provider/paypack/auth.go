package paypack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"storepay/internal/domain/credential"
	"storepay/internal/provider"
	"storepay/internal/provider/base"

	"github.com/rs/zerolog/log"
)

const (
	authorizePath = "/auth/agents/authorize"
	refreshPath   = "/auth/agents/refresh/"

	// below this, "expires" is a lifetime in seconds rather than a Unix time
	relativeExpiryLimit = 10 * 365 * 24 * 60 * 60

	diagnosticBodyLimit = 1024
)

// Authenticator mints credential sessions. Acquire authenticates from the
// client credentials, Refresh exchanges a refresh token.
type Authenticator interface {
	Acquire(ctx context.Context) (credential.Session, error)
	Refresh(ctx context.Context, refreshToken string) (credential.Session, error)
}

// Auth talks to the provider's agent authentication endpoints.
type Auth struct {
	http         *base.HTTPClient
	clientID     string
	clientSecret string
	refreshTTL   time.Duration
	now          func() time.Time
}

func NewAuth(http *base.HTTPClient, clientID, clientSecret string, refreshTTL time.Duration) *Auth {
	return &Auth{
		http:         http,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshTTL:   refreshTTL,
		now:          time.Now,
	}
}

type tokenResponse struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	Expires json.Number `json:"expires"`
}

// Acquire obtains a brand-new pair. Any prior session is superseded by the caller.
func (a *Auth) Acquire(ctx context.Context) (credential.Session, error) {
	log.Info().Str("provider", providerName).Msg("acquiring new provider session")

	resp, err := a.http.PostJSON(ctx, authorizePath, map[string]string{
		"client_id":     a.clientID,
		"client_secret": a.clientSecret,
	}, nil)
	if err != nil {
		return credential.Session{}, err
	}
	if !resp.IsSuccess() {
		return credential.Session{}, &provider.AuthenticationError{
			StatusCode: resp.StatusCode,
			Body:       provider.Excerpt(resp.Body, diagnosticBodyLimit),
		}
	}

	s, err := a.session("authorize", resp)
	if err != nil {
		return credential.Session{}, err
	}
	log.Info().
		Str("provider", providerName).
		Str("token", credential.TokenPrefix(s.AccessToken)).
		Time("expires_at", s.ExpiresAt).
		Msg("provider session acquired")
	return s, nil
}

// Refresh renews the pair with refreshToken. Every failure comes back as a
// TokenRefreshError.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (credential.Session, error) {
	if refreshToken == "" {
		return credential.Session{}, &provider.TokenRefreshError{Err: fmt.Errorf("no refresh token")}
	}
	log.Info().
		Str("provider", providerName).
		Str("refresh_token", credential.TokenPrefix(refreshToken)).
		Msg("refreshing provider session")

	resp, err := a.http.Get(ctx, refreshPath+url.PathEscape(refreshToken), nil)
	if err != nil {
		return credential.Session{}, &provider.TokenRefreshError{Err: err}
	}
	if !resp.IsSuccess() {
		return credential.Session{}, &provider.TokenRefreshError{
			StatusCode: resp.StatusCode,
			Body:       provider.Excerpt(resp.Body, diagnosticBodyLimit),
		}
	}

	s, err := a.session("refresh", resp)
	if err != nil {
		return credential.Session{}, &provider.TokenRefreshError{StatusCode: resp.StatusCode, Err: err}
	}
	log.Info().
		Str("provider", providerName).
		Time("expires_at", s.ExpiresAt).
		Msg("provider session refreshed")
	return s, nil
}

func (a *Auth) session(op string, resp *base.HTTPResponse) (credential.Session, error) {
	var t tokenResponse
	if err := resp.Decode(&t); err != nil {
		return credential.Session{}, &provider.ProtocolError{Op: op, Excerpt: provider.Excerpt(resp.Body, 100), Err: err}
	}
	if t.Access == "" {
		return credential.Session{}, &provider.ProtocolError{Op: op, Err: fmt.Errorf("missing access token")}
	}

	now := a.now()
	expiresAt, err := expiryFrom(t.Expires, now)
	if err != nil {
		return credential.Session{}, &provider.ProtocolError{Op: op, Err: err}
	}

	s := credential.Session{
		AccessToken:  t.Access,
		RefreshToken: t.Refresh,
		ExpiresAt:    expiresAt,
		IssuedAt:     now,
	}
	if a.refreshTTL > 0 && s.RefreshToken != "" {
		s.RefreshExpiresAt = now.Add(a.refreshTTL)
	}
	return s, nil
}

// expiryFrom turns the provider's "expires" (Unix seconds) into an absolute
// time that must still lie in the future.
func expiryFrom(raw json.Number, now time.Time) (time.Time, error) {
	f, err := raw.Float64()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expires %q: %w", raw.String(), err)
	}
	secs := int64(f)

	var at time.Time
	if secs < relativeExpiryLimit {
		at = now.Add(time.Duration(secs) * time.Second)
	} else {
		at = time.Unix(secs, 0)
	}
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("token already expired at %s", at.UTC().Format(time.RFC3339))
	}
	return at, nil
}
