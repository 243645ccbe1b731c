// Package redis provides Redis-backed adapters: a ResultStore for resolved
// session results and a DistributedLocker that leases devices across engine
// processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "ussdpilot:"

// Store implements ports.ResultStore using Redis.
// Each result is a JSON string with an optional TTL, indexed in a sorted set
// scored by save time so List can prune lazily and return the newest first.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for stored results. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, so a Locker can share the connection pool.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(sessionID string) string {
	return s.prefix + "result:" + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "results"
}

// Save persists the result and indexes it.
func (s *Store) Save(ctx context.Context, r domain.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	score := unixSeconds(s.now())

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(r.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: r.SessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a result by session ID.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Result, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.Result{}, domain.ErrResultNotFound
		}
		return domain.Result{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	var r domain.Result
	if err := json.Unmarshal(val, &r); err != nil {
		return domain.Result{}, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return r, nil
}

// List prunes expired entries from the index and returns the rest, newest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		cutoff := unixSeconds(s.now().Add(-s.ttl))
		err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("(%f", cutoff)).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to prune expired results: %w", err)
		}
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return ids, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
