package paypack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"storepay/internal/domain/credential"

	"github.com/redis/go-redis/v9"
)

// TokenStore holds the single Credential Session. Only SessionManager writes to it.
type TokenStore interface {
	Load(ctx context.Context) (credential.Session, error)
	Save(ctx context.Context, s credential.Session) error
}

// MemoryTokenStore keeps the session in process.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	session credential.Session
}

func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (m *MemoryTokenStore) Load(context.Context) (credential.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, s credential.Session) error {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
	return nil
}

// RedisTokenStore shares the session between every instance of the service,
// so a horizontally scaled deployment authenticates once instead of once per pod.
type RedisTokenStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisTokenStore creates a Redis-backed token store.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client, key: "paypack:session", now: time.Now}
}

func (r *RedisTokenStore) Load(ctx context.Context) (credential.Session, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return credential.Session{}, nil
	}
	if err != nil {
		return credential.Session{}, fmt.Errorf("token store: %w", err)
	}

	var s credential.Session
	if err := json.Unmarshal(val, &s); err != nil {
		return credential.Session{}, fmt.Errorf("token store: failed to unmarshal: %w", err)
	}
	return s, nil
}

func (r *RedisTokenStore) Save(ctx context.Context, s credential.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("token store: failed to marshal: %w", err)
	}
	return r.client.Set(ctx, r.key, data, r.ttl(s)).Err()
}

// ttl keeps the entry while either token may still be used. An unknown
// refresh expiry keeps it without expiry.
func (r *RedisTokenStore) ttl(s credential.Session) time.Duration {
	if s.RefreshToken != "" && s.RefreshExpiresAt.IsZero() {
		return 0
	}
	until := s.ExpiresAt
	if s.RefreshExpiresAt.After(until) {
		until = s.RefreshExpiresAt
	}
	ttl := until.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
