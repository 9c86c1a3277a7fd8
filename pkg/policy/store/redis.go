package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"mercator-hq/policyd/pkg/policy"
)

// RedisConfig contains configuration for the Redis store.
type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	Key         string
	DialTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Address:     "127.0.0.1:6379",
		Key:         "policyd:policies",
		DialTimeout: 5 * time.Second,
	}
}

// redisClient is the subset of the Redis API the store needs.
type redisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// errRedisNil is returned by redisClient.Get when the key is absent.
var errRedisNil = redis.Nil

type goRedisClient struct {
	client *redis.Client
}

func (c *goRedisClient) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *goRedisClient) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}

// redisDocument is the value stored under the configured key. The whole set
// and its metadata are written with one SET, so a reader never sees a mix of
// two sets.
type redisDocument struct {
	Revision  string          `json:"revision"`
	Version   string          `json:"version"`
	AppliedAt time.Time       `json:"applied_at"`
	Policies  []policy.Policy `json:"policies"`
}

// RedisStore keeps the active policy set in a single Redis key.
type RedisStore struct {
	client redisClient
	key    string
	logger *slog.Logger

	now func() time.Time
}

var (
	_ Store    = (*RedisStore)(nil)
	_ Replacer = (*RedisStore)(nil)
)

// NewRedisStore creates a Redis-backed store. It does not contact the
// server; call Ping to verify connectivity.
func NewRedisStore(cfg *RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return newRedisStore(&goRedisClient{client: client}, cfg.Key, logger), nil
}

func newRedisStore(client redisClient, key string, logger *slog.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisConfig().Key
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// UpdatePolicies writes the whole set under the store key.
func (s *RedisStore) UpdatePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, error) {
	applied, _, err := s.ReplacePolicies(ctx, policies)
	return applied, err
}

// ReplacePolicies is UpdatePolicies that also returns the written snapshot.
func (s *RedisStore) ReplacePolicies(ctx context.Context, policies []policy.Policy) ([]policy.Policy, Snapshot, error) {
	if err := validateSet("redis", policies); err != nil {
		return nil, Snapshot{}, err
	}

	snap, err := newSnapshot(policies, s.now())
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "redis", Op: "update", Message: "failed to compute version", Cause: err}
	}

	data, err := json.Marshal(redisDocument{
		Revision:  snap.Revision,
		Version:   snap.Version,
		AppliedAt: snap.AppliedAt,
		Policies:  policies,
	})
	if err != nil {
		return nil, Snapshot{}, &Error{Backend: "redis", Op: "update", Message: "failed to encode policies", Cause: err}
	}

	if err := s.client.Set(ctx, s.key, string(data)); err != nil {
		return nil, Snapshot{}, &Error{Backend: "redis", Op: "update", Message: fmt.Sprintf("failed to set %q", s.key), Cause: err}
	}

	return policy.Clone(policies), snap, nil
}

// ReadPolicies returns the stored set, or an empty set if the key is absent.
func (s *RedisStore) ReadPolicies(ctx context.Context) ([]policy.Policy, error) {
	doc, err := s.load(ctx, "read")
	if err != nil {
		return nil, err
	}
	if doc.Policies == nil {
		return []policy.Policy{}, nil
	}
	return doc.Policies, nil
}

// Snapshot returns metadata about the stored set.
func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	doc, err := s.load(ctx, "snapshot")
	if err != nil {
		return Snapshot{}, err
	}
	if doc.Revision == "" {
		return Snapshot{}, nil
	}
	return Snapshot{
		Revision:  doc.Revision,
		Version:   doc.Version,
		AppliedAt: doc.AppliedAt,
		Count:     len(doc.Policies),
	}, nil
}

func (s *RedisStore) load(ctx context.Context, op string) (redisDocument, error) {
	raw, err := s.client.Get(ctx, s.key)
	if errors.Is(err, errRedisNil) {
		return redisDocument{}, nil
	}
	if err != nil {
		return redisDocument{}, &Error{Backend: "redis", Op: op, Message: fmt.Sprintf("failed to get %q", s.key), Cause: err}
	}

	var doc redisDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return redisDocument{}, &Error{Backend: "redis", Op: op, Message: "failed to decode stored policies", Cause: err}
	}
	return doc, nil
}

// Ping checks that the Redis server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return &Error{Backend: "redis", Op: "ping", Message: "server unreachable", Cause: err}
	}
	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
