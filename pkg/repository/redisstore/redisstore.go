// SPDX-License-Identifier: MPL-2.0

// Package redisstore provides a repository.Store backed by Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

// DefaultPrefix is the key prefix used when Config.Prefix is empty.
const DefaultPrefix = "scriptvault:"

var _ repository.Store = (*Store)(nil)

type (
	// Store keeps each record in a string key and tracks stored ids in a set.
	// Record and index are updated together in a MULTI/EXEC transaction.
	Store struct {
		client *redis.Client
		prefix string
	}

	// Config holds Redis connection settings.
	Config struct {
		// Addr is the Redis server address (host:port).
		Addr string
		// Password is the Redis password (optional).
		Password string
		// DB is the Redis database number.
		DB int
		// Prefix namespaces all keys written by the store.
		Prefix string
	}
)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return NewWithClient(client, cfg.Prefix), nil
}

// NewWithClient returns a Store that uses an existing client. The store takes
// ownership of the client and closes it in Close.
func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Put writes the record and adds id to the index in one transaction.
func (s *Store) Put(ctx context.Context, id archive.ModuleID, data []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(id), data, 0)
		pipe.SAdd(ctx, s.indexKey(), id.String())
		return nil
	})
	return err
}

// GetMany fetches all requested records with a single MGET.
func (s *Store) GetMany(ctx context.Context, ids []archive.ModuleID) (map[archive.ModuleID][]byte, error) {
	result := make(map[archive.ModuleID][]byte, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			result[ids[i]] = []byte(value)
		default:
			return nil, fmt.Errorf("unexpected value type %T for key %s", v, keys[i])
		}
	}
	return result, nil
}

// Delete removes the record and its index entry in one transaction.
func (s *Store) Delete(ctx context.Context, id archive.ModuleID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.recordKey(id))
		pipe.SRem(ctx, s.indexKey(), id.String())
		return nil
	})
	return err
}

// Keys returns the ids in the index.
func (s *Store) Keys(ctx context.Context) ([]archive.ModuleID, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	ids := make([]archive.ModuleID, 0, len(members))
	for _, m := range members {
		id, err := archive.ParseModuleID(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt index entry %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) recordKey(id archive.ModuleID) string {
	return s.prefix + "archive:" + id.String()
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}
