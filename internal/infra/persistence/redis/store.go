// Package redis provides a Redis-backed persistent store. The project is kept
// as a single hash whose fields are the snapshot buckets, so several shells
// or API processes can share one project.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowpanel/internal/infra/persistence/memory"
	"flowpanel/pkg/domain"

	goredis "github.com/redis/go-redis/v9"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	// DefaultAddr is used when Options.Addr is empty.
	DefaultAddr = "localhost:6379"
	// DefaultKey is the hash key holding the project buckets.
	DefaultKey = "flowpanel:state"

	pingTimeout = 5 * time.Second
)

// Client is the subset of the go-redis client used by the store.
type Client interface {
	Ping(ctx context.Context) *goredis.StatusCmd
	HGetAll(ctx context.Context, key string) *goredis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *goredis.IntCmd
	Close() error
}

// Options configures Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// Store persists state to a Redis hash while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	client Client
	key    string
	mu     sync.Mutex
}

// Open dials Redis with the supplied options and returns a hydrated store.
func Open(ctx context.Context, opts Options, engine *domain.RulesEngine) (*Store, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	store, err := NewStore(ctx, client, opts.Key, engine)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an existing client. An empty key selects DefaultKey.
func NewStore(ctx context.Context, client Client, key string, engine *domain.RulesEngine) (*Store, error) {
	if key == "" {
		key = DefaultKey
	}
	fields, err := client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	mem := memory.NewStore(engine)
	if len(fields) > 0 {
		payloads := make(map[string][]byte, len(fields))
		for bucket, payload := range fields {
			payloads[bucket] = []byte(payload)
		}
		snapshot, err := memory.DecodeBuckets(payloads)
		if err != nil {
			return nil, err
		}
		mem.ImportState(snapshot)
	}
	return &Store{Store: mem, client: client, key: key}, nil
}

// RunInTransaction applies the provided function within a transaction, then writes the buckets if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// Key returns the hash key holding the project.
func (s *Store) Key() string { return s.key }

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }

// persist writes every bucket with one HSET so readers never see a partial project.
func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	payloads, err := memory.EncodeBuckets(s.ExportState())
	if err != nil {
		return err
	}
	values := make([]any, 0, 2*len(memory.Buckets))
	for _, bucket := range memory.Buckets {
		values = append(values, bucket, string(payloads[bucket]))
	}
	if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", s.key, err)
	}
	return nil
}
