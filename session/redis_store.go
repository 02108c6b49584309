package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/leafwise/leafwise/types"
)

const redisKeyPrefix = "leafwise:session:"

// RedisStore persists session snapshots to Redis with a TTL, letting
// multiple engine replicas serve the same conversation. Live sessions are
// cached locally; Save writes the snapshot back after each turn.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	local  *InMemoryStore
	loads  singleflight.Group
	logger *zap.Logger
}

// NewRedisStore creates a Redis-backed session store. ttl bounds how long
// an idle conversation survives; zero means no expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		local:  NewInMemoryStore(),
		logger: logger,
	}
}

// Create allocates a new session and persists its empty snapshot.
func (s *RedisStore) Create(ctx context.Context) (*Session, error) {
	sess := New(uuid.NewString())
	s.local.mu.Lock()
	s.local.sessions[sess.ID] = sess
	s.local.mu.Unlock()

	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the locally cached session, falling back to the Redis
// snapshot when this replica has not seen the session yet.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if sess, err := s.local.Get(ctx, id); err == nil {
		return sess, nil
	}

	// Cold-cache loads collapse per id. Every caller must hold the same
	// instance: distinct instances carry distinct turn locks, and turns
	// for one session would interleave.
	v, err, _ := s.loads.Do(id, func() (any, error) {
		return s.loadSnapshot(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (s *RedisStore) loadSnapshot(ctx context.Context, id string) (*Session, error) {
	// A concurrent load may have finished between the cache miss and this
	// flight starting.
	if sess, err := s.local.Get(ctx, id); err == nil {
		return sess, nil
	}

	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.NewError(types.ErrSessionNotFound, "session "+id+" not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}

	sess := fromSnapshot(snap)
	s.local.mu.Lock()
	if cached, ok := s.local.sessions[id]; ok {
		sess = cached
	} else {
		s.local.sessions[id] = sess
	}
	s.local.mu.Unlock()
	return sess, nil
}

// Save writes the session snapshot back to Redis.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess.toSnapshot())
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+sess.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete removes the session locally and from Redis.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.local.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	s.logger.Debug("session deleted", zap.String("session_id", id))
	return nil
}
