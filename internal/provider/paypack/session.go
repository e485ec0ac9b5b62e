package paypack

import (
	"context"
	"sync"
	"time"

	"storepay/internal/domain/credential"
	"storepay/internal/provider"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const sessionFlight = "session"

// SessionManager hands out a valid access token, reusing, refreshing or
// reacquiring the session as needed. One renewal runs at a time per process;
// concurrent callers wait for it and share its result.
type SessionManager struct {
	auth  Authenticator
	store TokenStore
	skew  time.Duration
	now   func() time.Time
	group singleflight.Group

	mu sync.Mutex // serializes store read-modify-write
}

func NewSessionManager(auth Authenticator, store TokenStore, skew time.Duration) *SessionManager {
	if store == nil {
		store = NewMemoryTokenStore()
	}
	return &SessionManager{auth: auth, store: store, skew: skew, now: time.Now}
}

// Token returns a currently valid access token. It fails only with a
// TokenAcquisitionError (or ctx's error).
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	if s := m.load(ctx); s.Usable(m.now(), m.skew) {
		return s.AccessToken, nil
	}

	// The renewal outlives a caller that gives up, others may be waiting on it.
	ch := m.group.DoChan(sessionFlight, func() (any, error) {
		return m.renew(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops token if it is still the stored one, so the next Token
// call renews. Used when the provider answers 401 to a token we thought valid.
func (m *SessionManager) Invalidate(ctx context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.load(ctx)
	if s.AccessToken == "" || s.AccessToken != token {
		return
	}
	if err := m.store.Save(ctx, s.WithoutAccess()); err != nil {
		log.Error().Err(err).Msg("failed to invalidate provider session")
	}
}

func (m *SessionManager) renew(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// another instance sharing the store may have renewed already
	s := m.load(ctx)
	now := m.now()
	if s.Usable(now, m.skew) {
		return s.AccessToken, nil
	}
	if s.IsEmpty() {
		log.Debug().Str("provider", providerName).Msg("no provider session yet")
	}

	if s.CanRefresh(now) {
		next, err := m.auth.Refresh(ctx, s.RefreshToken)
		if err == nil {
			m.save(ctx, next)
			return next.AccessToken, nil
		}
		log.Warn().Err(err).Str("provider", providerName).Msg("token refresh failed, acquiring a new session")
	}

	next, err := m.auth.Acquire(ctx)
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("token acquisition failed")
		return "", &provider.TokenAcquisitionError{Err: err}
	}
	m.save(ctx, next)
	return next.AccessToken, nil
}

// load treats an unreadable store as empty: the provider stays reachable
// even when Redis is not.
func (m *SessionManager) load(ctx context.Context) credential.Session {
	s, err := m.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("token store unavailable, treating session as empty")
		return credential.Session{}
	}
	return s
}

func (m *SessionManager) save(ctx context.Context, s credential.Session) {
	if lifetime := s.ExpiresAt.Sub(s.IssuedAt); !s.IssuedAt.IsZero() && lifetime <= m.skew {
		log.Warn().
			Str("provider", providerName).
			Dur("lifetime", lifetime).
			Dur("skew", m.skew).
			Msg("provider token lifetime is not longer than the renewal skew, renewing at half-life instead")
	}
	if err := m.store.Save(ctx, s); err != nil {
		log.Error().Err(err).Msg("failed to store provider session")
	}
}
