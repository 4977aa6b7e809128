package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"livechat/internal/app/user"
)

// RedisStore keeps each chatroom's live-user set in a Redis hash keyed by user id,
// so every server instance sees the same presence.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore returns a Store whose keys live under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(chatroomID int64) string {
	return fmt.Sprintf("%spresence:%d", s.prefix, chatroomID)
}

func (s *RedisStore) Add(ctx context.Context, chatroomID int64, u user.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("presence: encode user %d: %w", u.ID, err)
	}

	if err := s.client.HSet(ctx, s.key(chatroomID), strconv.FormatInt(u.ID, 10), data).Err(); err != nil {
		return fmt.Errorf("presence: add user %d to chatroom %d: %w", u.ID, chatroomID, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, chatroomID, userID int64) error {
	if err := s.client.HDel(ctx, s.key(chatroomID), strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("presence: remove user %d from chatroom %d: %w", userID, chatroomID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, chatroomID int64) ([]user.User, error) {
	values, err := s.client.HVals(ctx, s.key(chatroomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list chatroom %d: %w", chatroomID, err)
	}

	users := make([]user.User, 0, len(values))
	for _, value := range values {
		var u user.User
		if err := json.Unmarshal([]byte(value), &u); err != nil {
			return nil, fmt.Errorf("presence: decode live user in chatroom %d: %w", chatroomID, err)
		}
		users = append(users, u)
	}
	sortByID(users)
	return users, nil
}
