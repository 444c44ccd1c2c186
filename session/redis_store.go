package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bumisarana/absensi-client/models"
)

const (
	redisTokenKey = "absensi:session:token"
	redisUserKey  = "absensi:session:user"

	redisOpTimeout = 2 * time.Second
)

// RedisOptions configures the Redis session backend.
type RedisOptions struct {
	Host     string
	Port     int
	DB       int
	Password string
	// KeyPrefix namespaces the session keys, e.g. per kiosk terminal.
	KeyPrefix string
}

// RedisStore keeps the credential in Redis. Intended for shared kiosk
// deployments where the session must survive process restarts and be visible
// to more than one local process.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store with its own Redis client.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
	})
	return &RedisStore{client: client, prefix: opts.KeyPrefix}
}

func (s *RedisStore) Token() (string, error) {
	ctx, cancel := opCtx()
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+redisTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisStore) SetToken(token string) error {
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Set(ctx, s.prefix+redisTokenKey, token, 0).Err()
}

func (s *RedisStore) User() (*models.User, error) {
	ctx, cancel := opCtx()
	defer cancel()
	val, err := s.client.Get(ctx, s.prefix+redisUserKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal([]byte(val), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *RedisStore) SetUser(user *models.User) error {
	ctx, cancel := opCtx()
	defer cancel()
	if user == nil {
		return s.client.Del(ctx, s.prefix+redisUserKey).Err()
	}
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+redisUserKey, b, 0).Err()
}

// Clear deletes both keys in one round trip.
func (s *RedisStore) Clear() error {
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Del(ctx, s.prefix+redisTokenKey, s.prefix+redisUserKey).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}
