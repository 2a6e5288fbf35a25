package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlexZinkM/abc-core/internal/model"
)

// ConnectRedis initializes a Redis client from URL or host:port input.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisLobbyStore keeps lobbies in Redis and lets key expiry end them.
// The reply lives under its own key so that SETNX makes it single-use.
type RedisLobbyStore struct {
	client *redis.Client
}

var _ LobbyStore = (*RedisLobbyStore)(nil)

func NewRedisLobbyStore(client *redis.Client) *RedisLobbyStore {
	return &RedisLobbyStore{client: client}
}

func lobbyKey(id string) string { return "auth:lobby:" + id }
func replyKey(id string) string { return "auth:lobby:" + id + ":reply" }

func (s *RedisLobbyStore) Create(ctx context.Context, lobby *model.Lobby, ttl time.Duration) error {
	stored := *lobby
	stored.Reply = nil
	stored.ExpiresAt = time.Now().Add(ttl).UTC()
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, lobbyKey(lobby.ID), raw, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisLobbyStore) Get(ctx context.Context, id string) (*model.Lobby, error) {
	raw, err := s.client.Get(ctx, lobbyKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var lobby model.Lobby
	if err := json.Unmarshal(raw, &lobby); err != nil {
		return nil, err
	}

	rawReply, err := s.client.Get(ctx, replyKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, err
	default:
		var reply model.LobbyReply
		if err := json.Unmarshal(rawReply, &reply); err != nil {
			return nil, err
		}
		lobby.Reply = &reply
	}
	return &lobby, nil
}

func (s *RedisLobbyStore) SetReply(ctx context.Context, id string, reply model.LobbyReply) error {
	ttl, err := s.client.PTTL(ctx, lobbyKey(id)).Result()
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrNotFound
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, replyKey(id), raw, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrResolved
	}
	return nil
}

func (s *RedisLobbyStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, lobbyKey(id), replyKey(id)).Err()
}
