package paypack

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"storepay/internal/domain/credential"
	"storepay/internal/provider"

	"github.com/stretchr/testify/require"
)

func TestTokenAcquiresWhenNoSession(t *testing.T) {
	fp, cfg := startFake(t)
	_, sessions := New(cfg, nil)

	token, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-token-a", token)
	require.Equal(t, 1, fp.count("authorize"))
	require.Equal(t, 0, fp.count("refresh"))
	require.Equal(t, map[string]any{"client_id": "client-id", "client_secret": "client-secret"}, fp.bodies["authorize"][0])
}

func TestTokenReusesUnexpiredSession(t *testing.T) {
	fp, cfg := startFake(t)
	_, sessions := New(cfg, nil)

	first, err := sessions.Token(context.Background())
	require.NoError(t, err)
	before := fp.total()

	second, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, fp.total(), "second call must not touch the network")
}

func TestTokenRefreshesExpiredSession(t *testing.T) {
	fp, cfg := startFake(t)
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), credential.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	_, sessions := New(cfg, store)

	token, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-token-a", token)
	require.Equal(t, 1, fp.count("refresh"))
	require.Equal(t, 0, fp.count("authorize"))

	s, _ := store.Load(context.Background())
	require.Equal(t, "refresh-token-a", s.RefreshToken)
	require.True(t, s.ExpiresAt.After(time.Now()))
}

func TestTokenFallsBackToAcquisitionWhenRefreshFails(t *testing.T) {
	fp, cfg := startFake(t)
	fp.refreshStatus = http.StatusUnauthorized
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), credential.Session{
		AccessToken:  "stale",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	_, sessions := New(cfg, store)

	token, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-token-a", token)
	require.Equal(t, 1, fp.count("refresh"))
	require.Equal(t, 1, fp.count("authorize"))
}

func TestTokenSkipsRefreshKnownToBeExpired(t *testing.T) {
	fp, cfg := startFake(t)
	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), credential.Session{
		RefreshToken:     "refresh-old",
		RefreshExpiresAt: time.Now().Add(-time.Second),
	}))
	_, sessions := New(cfg, store)

	_, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, fp.count("refresh"))
	require.Equal(t, 1, fp.count("authorize"))
}

func TestTokenAcquisitionFailureIsFatal(t *testing.T) {
	fp, cfg := startFake(t)
	fp.authStatus = http.StatusUnauthorized
	_, sessions := New(cfg, nil)

	_, err := sessions.Token(context.Background())
	var acqErr *provider.TokenAcquisitionError
	require.True(t, errors.As(err, &acqErr))

	var authErr *provider.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	require.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	require.Contains(t, authErr.Body, "invalid client credentials")
	require.Equal(t, 1, fp.count("authorize"), "no automatic retry")
}

func TestTokenConcurrentCallersShareOneAcquisition(t *testing.T) {
	fp, cfg := startFake(t)
	fp.authDelay = 50 * time.Millisecond
	_, sessions := New(cfg, nil)

	var wg sync.WaitGroup
	tokens := make([]string, 20)
	errs := make([]error, 20)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = sessions.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		require.NoError(t, errs[i])
		require.Equal(t, "access-token-a", tokens[i])
	}
	require.Equal(t, 1, fp.count("authorize"))
}

func TestTokenCallerCancellationDoesNotCancelRenewal(t *testing.T) {
	fp, cfg := startFake(t)
	fp.authDelay = 100 * time.Millisecond
	_, sessions := New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sessions.Token(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	token, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-token-a", token)
	require.Equal(t, 1, fp.count("authorize"))
}

func TestInvalidateOnlyDropsMatchingToken(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, credential.Session{
		AccessToken:  "current",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))
	sessions := NewSessionManager(nil, store, 0)

	sessions.Invalidate(ctx, "older")
	s, _ := store.Load(ctx)
	require.Equal(t, "current", s.AccessToken)

	sessions.Invalidate(ctx, "current")
	s, _ = store.Load(ctx)
	require.Empty(t, s.AccessToken)
	require.Equal(t, "r", s.RefreshToken)
}

type failingStore struct{}

func (failingStore) Load(context.Context) (credential.Session, error) {
	return credential.Session{}, errors.New("redis down")
}
func (failingStore) Save(context.Context, credential.Session) error { return errors.New("redis down") }

func TestTokenSurvivesStoreOutage(t *testing.T) {
	fp, cfg := startFake(t)
	_, sessions := New(cfg, failingStore{})

	token, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, 1, fp.count("authorize"))
}

// gatedStore holds its first Save until release is closed.
type gatedStore struct {
	*MemoryTokenStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, s credential.Session) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.MemoryTokenStore.Save(ctx, s)
}

func TestInvalidateDoesNotClobberConcurrentRenewal(t *testing.T) {
	fp, cfg := startFake(t)
	ctx := context.Background()
	mem := NewMemoryTokenStore()
	require.NoError(t, mem.Save(ctx, credential.Session{
		AccessToken:  "old",
		RefreshToken: "refresh-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	store := &gatedStore{MemoryTokenStore: mem, entered: make(chan struct{}), release: make(chan struct{})}
	_, sessions := New(cfg, store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sessions.Invalidate(ctx, "old")
	}()
	<-store.entered

	var (
		token string
		err   error
	)
	go func() {
		defer wg.Done()
		token, err = sessions.Token(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()

	require.NoError(t, err)
	require.Equal(t, "access-token-a", token)
	s, _ := mem.Load(ctx)
	require.Equal(t, "access-token-a", s.AccessToken, "renewed session must survive the invalidation")
	require.Equal(t, 1, fp.count("refresh"))
}

func TestShortLivedTokenIsReusedDespiteLargeSkew(t *testing.T) {
	fp, cfg := startFake(t)
	fp.expiresIn = 10 * time.Second
	cfg.Paypack.TokenSkew = 30 * time.Second
	_, sessions := New(cfg, nil)

	first, err := sessions.Token(context.Background())
	require.NoError(t, err)
	before := fp.total()

	second, err := sessions.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, fp.total(), "token shorter than the skew must not be renewed on every call")
}
