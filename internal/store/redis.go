package store

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dorucioclea/dlc-stack/config"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const backendRedis = "redis"

// RedisStore keeps records in a Redis cluster under a key prefix.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
}

// NewRedisStore connects to the configured cluster, or to a single node when
// cluster mode is off.
func NewRedisStore(cfg config.RedisConfig, opTimeout time.Duration) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("no Redis addresses configured")
	}

	var client redis.UniversalClient
	if cfg.Cluster {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.Addrs,
			Password:    cfg.Password,
			DialTimeout: cfg.DialTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:        cfg.Addrs[0],
			Password:    cfg.Password,
			DialTimeout: cfg.DialTimeout,
		})
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return NewRedisStoreFromClient(client, cfg.KeyPrefix, opTimeout), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.UniversalClient, prefix string, opTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, opTimeout: opTimeout}
}

func (s *RedisStore) key(eventID string) string {
	return s.prefix + eventID
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Insert upserts a record, returning the previous value via GETSET
func (s *RedisStore) Insert(ctx context.Context, eventID string, record []byte) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prev, err := s.client.GetSet(ctx, s.key(eventID), record).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(backendRedis, "insert", err)
	}
	return prev, nil
}

// Get fetches a record
func (s *RedisStore) Get(ctx context.Context, eventID string) ([]byte, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(eventID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr(backendRedis, "get", err)
	}
	return data, true, nil
}

// GetAll scans the key prefix on every master
func (s *RedisStore) GetAll(ctx context.Context) ([]Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		keys []string
	)
	scan := func(ctx context.Context, c redis.Cmdable) error {
		iter := c.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			mu.Lock()
			keys = append(keys, iter.Val())
			mu.Unlock()
		}
		return iter.Err()
	}

	var err error
	if cluster, ok := s.client.(*redis.ClusterClient); ok {
		err = cluster.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
			return scan(ctx, c)
		})
	} else {
		err = scan(ctx, s.client)
	}
	if err != nil {
		return nil, storeErr(backendRedis, "get_all", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		data, err := s.client.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, storeErr(backendRedis, "get_all", err)
		}
		entries = append(entries, Entry{EventID: strings.TrimPrefix(k, s.prefix), Record: data})
	}
	return entries, nil
}

// IsEmpty is not answered for a shared cluster.
func (s *RedisStore) IsEmpty(ctx context.Context) bool {
	return false
}

// CompareAndSwap replaces the record under WATCH/MULTI
func (s *RedisStore) CompareAndSwap(ctx context.Context, eventID string, expected, record []byte) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := s.key(eventID)
	swapped := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			cur = nil
		} else if err != nil {
			return err
		}
		if (expected == nil) != (cur == nil) || !bytes.Equal(cur, expected) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, record, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if err == redis.TxFailedErr {
		return false, nil
	}
	if err != nil {
		return false, storeErr(backendRedis, "compare_and_swap", err)
	}
	return swapped, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
