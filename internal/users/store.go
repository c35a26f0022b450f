package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrExists   = errors.New("user already exists")
	ErrNotFound = errors.New("user not found")
)

// User is an account record. PasswordHash is a bcrypt hash, never the
// plaintext password.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// Store persists account records. The signaling core never touches this;
// only the auth endpoints do.
type Store interface {
	Create(ctx context.Context, username, passwordHash string) (User, error)
	Get(ctx context.Context, username string) (User, error)
}

// RedisStore keeps one JSON document per user under "user:<username>".
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userKey(username string) string {
	return "user:" + username
}

func (s *RedisStore) Create(ctx context.Context, username, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
	}

	data, err := json.Marshal(u)
	if err != nil {
		return User{}, fmt.Errorf("failed to marshal user: %w", err)
	}

	// SetNX makes the duplicate check atomic with the write.
	ok, err := s.client.SetNX(ctx, userKey(username), data, 0).Result()
	if err != nil {
		return User{}, fmt.Errorf("failed to store user: %w", err)
	}
	if !ok {
		return User{}, ErrExists
	}
	return u, nil
}

func (s *RedisStore) Get(ctx context.Context, username string) (User, error) {
	data, err := s.client.Get(ctx, userKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to load user: %w", err)
	}

	var u User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return User{}, fmt.Errorf("failed to parse user record: %w", err)
	}
	return u, nil
}
