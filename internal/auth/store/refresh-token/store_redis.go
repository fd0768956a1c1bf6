package refreshtoken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"waypost/internal/auth/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

const keyPrefix = "waypost:refresh:"

func tokenKey(token string) string { return keyPrefix + token }
func userKey(userID id.UserID) string {
	return keyPrefix + "user:" + userID.String()
}

// consumeScript atomically claims a token by deleting it, returning the
// stored payload. Two concurrent refreshes with the same token race on the
// delete; exactly one wins.
var consumeScript = redis.NewScript(`
local payload = redis.call("GET", KEYS[1])
if not payload then
  return false
end
redis.call("DEL", KEYS[1])
return payload
`)

// RedisStore keeps refresh tokens in Redis with TTL-based expiry. Expired
// tokens vanish on their own, so consume distinguishes only found/not-found;
// revocation deletes the user's outstanding tokens.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, record *models.RefreshTokenRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}
	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired: %w", sentinel.ErrExpired)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tokenKey(record.Token), payload, ttl)
	pipe.SAdd(ctx, userKey(record.UserID), record.Token)
	pipe.Expire(ctx, userKey(record.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{tokenKey(token)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	var record models.RefreshTokenRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshal refresh token: %w", err)
	}
	if validationErr := record.ValidateForConsume(now); validationErr != nil {
		return &record, translateConsumeError(validationErr)
	}
	record.MarkUsed()
	_ = s.client.SRem(ctx, userKey(record.UserID), token).Err()
	return &record, nil
}

func (s *RedisStore) RevokeByUser(ctx context.Context, userID id.UserID) error {
	tokens, err := s.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list user refresh tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, tokenKey(token))
	}
	keys = append(keys, userKey(userID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op under Redis: per-key TTLs already reap expired
// tokens. Kept to satisfy the store interface shared with the memory store.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
