package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// ErrResetTokenNotFound Token 不存在、已过期或已使用
var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetTokenRepository 密码重置 Token 存储，只保存 Token 的哈希
type ResetTokenRepository struct {
	rdb *redis.Client
}

// NewResetTokenRepository 创建重置 Token 仓库
func NewResetTokenRepository(rdb *redis.Client) *ResetTokenRepository {
	return &ResetTokenRepository{rdb: rdb}
}

// Save 保存 Token 哈希，15 分钟后过期
func (r *ResetTokenRepository) Save(ctx context.Context, tokenHash string, userID int64) error {
	return r.rdb.Set(ctx, BuildResetTokenKey(tokenHash), userID, ResetTokenTTL).Err()
}

// Consume 取出并删除 Token，保证只能使用一次
func (r *ResetTokenRepository) Consume(ctx context.Context, tokenHash string) (int64, error) {
	val, err := r.rdb.GetDel(ctx, BuildResetTokenKey(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrResetTokenNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
