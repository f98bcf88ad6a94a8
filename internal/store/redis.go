package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"concord/api/internal/vcs"
)

// Redis stores each repository snapshot as a JSON value under a prefixed key.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the given Redis URL and verifies the connection.
func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "vcs:repo:"}
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

func (s *Redis) Save(ctx context.Context, repo *vcs.Repository) error {
	payload, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("marshal repository %s: %w", repo.ID, err)
	}
	if err := s.client.Set(ctx, s.key(repo.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save repository %s: %w", repo.ID, err)
	}
	return nil
}

func (s *Redis) Load(ctx context.Context, id string) (*vcs.Repository, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("snapshot %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load repository %s: %w", id, err)
	}

	var repo vcs.Repository
	if err := json.Unmarshal([]byte(payload), &repo); err != nil {
		return nil, fmt.Errorf("unmarshal repository %s: %w", id, err)
	}
	return &repo, nil
}

func (s *Redis) List(ctx context.Context) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(s.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return ids, nil
}

func (s *Redis) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Redis) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
