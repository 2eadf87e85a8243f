package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

const defaultPrefix = "ussdflow:"

// createScript reserves the channel and writes the session atomically.
// KEYS: session, channel, revision, expiry index.
// ARGV: session JSON, session ID, expiry score.
var createScript = backend.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[3], "0")
redis.call("SET", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[4], ARGV[3], ARGV[2])
return 1
`)

// saveScript is the conditional write: it commits only when the stored
// revision equals the one the caller read at. Terminal saves release the
// channel and leave the expiry index.
// KEYS: session, channel, revision, expiry index.
// ARGV: session JSON, expected revision, session ID, terminal flag, expiry score.
var saveScript = backend.NewScript(`
local cur = redis.call("GET", KEYS[3])
if not cur then
	return -1
end
if tonumber(cur) ~= tonumber(ARGV[2]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[3], tostring(tonumber(cur) + 1))
if ARGV[4] == "1" then
	if redis.call("GET", KEYS[2]) == ARGV[3] then
		redis.call("DEL", KEYS[2])
	end
	redis.call("ZREM", KEYS[4], ARGV[3])
else
	redis.call("ZADD", KEYS[4], ARGV[5], ARGV[3])
end
return 1
`)

// SessionStore implements ports.SessionStore on Redis.
type SessionStore struct {
	client *backend.Client
	prefix string
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.prefix = prefix
	}
}

// NewClient creates a redis client for the given address. Shared by the
// session and flow stores so both ride one connection pool.
func NewClient(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}

// NewSessionStoreFromClient creates a store over an existing client.
func NewSessionStoreFromClient(client *backend.Client, opts ...Option) *SessionStore {
	store := &SessionStore{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *SessionStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *SessionStore) revisionKey(id string) string {
	return s.prefix + "rev:" + id
}

func (s *SessionStore) channelKey(phoneNumber, shortCode string) string {
	return s.prefix + "channel:" + phoneNumber + "|" + shortCode
}

func (s *SessionStore) indexKey() string {
	return s.prefix + "expiring"
}

// Create persists a new session, failing if the channel is already held.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	stored := session.Clone()
	stored.Revision = 0
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	keys := []string{
		s.sessionKey(session.SessionID),
		s.channelKey(session.PhoneNumber, session.ShortCode),
		s.revisionKey(session.SessionID),
		s.indexKey(),
	}
	res, err := createScript.Run(ctx, s.client, keys,
		data, session.SessionID, session.ExpiresAt.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if res == 0 {
		return domain.ErrConflictingActiveSession
	}
	session.Revision = 0
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

// GetByChannel retrieves the active session holding a channel.
func (s *SessionStore) GetByChannel(ctx context.Context, phoneNumber, shortCode string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, s.channelKey(phoneNumber, shortCode)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get channel: %w", err)
	}
	return s.Get(ctx, id)
}

// Save commits a mutated session if no concurrent writer beat it.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	stored := session.Clone()
	stored.Revision = session.Revision + 1
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	terminal := "0"
	if session.Status.IsTerminal() {
		terminal = "1"
	}

	keys := []string{
		s.sessionKey(session.SessionID),
		s.channelKey(session.PhoneNumber, session.ShortCode),
		s.revisionKey(session.SessionID),
		s.indexKey(),
	}
	res, err := saveScript.Run(ctx, s.client, keys,
		data, session.Revision, session.SessionID, terminal, session.ExpiresAt.UnixMilli()).Int()
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrSessionNotFound
	case 0:
		return domain.ErrConcurrentModification
	}
	session.Revision = stored.Revision
	return nil
}

// ListExpiring returns active sessions whose deadline is at or before now.
func (s *SessionStore) ListExpiring(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis range expiring: %w", err)
	}
	return ids, nil
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
