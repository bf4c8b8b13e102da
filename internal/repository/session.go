package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRepository 会话注销记录
// JWT 无状态，登出后在 Redis 中记录 jti 直到原过期时间
type SessionRepository struct {
	rdb *redis.Client
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// Revoke 注销会话
func (r *SessionRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, BuildSessionRevokedKey(tokenID), 1, ttl).Err()
}

// IsRevoked 判断会话是否已注销
func (r *SessionRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, BuildSessionRevokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
