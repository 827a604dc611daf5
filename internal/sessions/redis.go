package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "import_session:"

// NewRedisClient parses redisURL and verifies the connection. The client is
// shared by the session repository and the rate limiter.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisRepository stores sessions as JSON values with a sliding TTL.
type RedisRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisRepository creates a Redis-backed session repository.
func NewRedisRepository(client redis.Cmdable, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

// Get loads a session. Expired sessions have already been evicted by Redis.
func (r *RedisRepository) Get(ctx context.Context, id uuid.UUID) (*models.ImportSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load import session: %w", err)
	}
	return decode(data)
}

// Save writes the session and resets its TTL.
func (r *RedisRepository) Save(ctx context.Context, s *models.ImportSession) error {
	s.ExpiresAt = time.Now().Add(r.ttl)
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save import session: %w", err)
	}
	return nil
}

// Update overwrites an existing session with SET XX and resets its TTL.
func (r *RedisRepository) Update(ctx context.Context, s *models.ImportSession) error {
	s.ExpiresAt = time.Now().Add(r.ttl)
	data, err := encode(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, sessionKey(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to update import session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	return nil
}

// Delete removes a session.
func (r *RedisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete import session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Take deletes the session with GETDEL and returns what was stored.
func (r *RedisRepository) Take(ctx context.Context, id uuid.UUID) (*models.ImportSession, error) {
	data, err := r.client.GetDel(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take import session: %w", err)
	}
	return decode(data)
}

var _ Repository = (*RedisRepository)(nil)

func encode(s *models.ImportSession) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal import session: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.ImportSession, error) {
	s := &models.ImportSession{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal import session: %w", err)
	}
	return s, nil
}
