package repository

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// removeIfOwnerScript 仅当记录仍属于当前连接时删除
var removeIfOwnerScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

// PresenceRepository 跨节点在线状态镜像
type PresenceRepository struct {
	rdb    *redis.Client
	nodeID int64
}

// NewPresenceRepository 创建在线状态仓库
func NewPresenceRepository(rdb *redis.Client, nodeID int64) *PresenceRepository {
	return &PresenceRepository{rdb: rdb, nodeID: nodeID}
}

// SetOnline 记录用户在线，后写入者覆盖
func (r *PresenceRepository) SetOnline(ctx context.Context, userID int64, connID string) error {
	field := strconv.FormatInt(userID, 10)
	return r.rdb.HSet(ctx, PresenceKey, field, BuildPresenceOwner(r.nodeID, connID)).Err()
}

// SetOffline 按连接身份删除在线记录，返回是否删除
func (r *PresenceRepository) SetOffline(ctx context.Context, userID int64, connID string) (bool, error) {
	field := strconv.FormatInt(userID, 10)
	n, err := removeIfOwnerScript.Run(ctx, r.rdb, []string{PresenceKey}, field, BuildPresenceOwner(r.nodeID, connID)).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineUsers 获取全部在线用户
func (r *PresenceRepository) OnlineUsers(ctx context.Context) ([]int64, error) {
	fields, err := r.rdb.HKeys(ctx, PresenceKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ClearNode 清理本节点遗留的在线记录（进程重启后调用）
func (r *PresenceRepository) ClearNode(ctx context.Context) error {
	entries, err := r.rdb.HGetAll(ctx, PresenceKey).Result()
	if err != nil {
		return err
	}
	prefix := strconv.FormatInt(r.nodeID, 10) + ":"
	var stale []string
	for field, owner := range entries {
		if strings.HasPrefix(owner, prefix) {
			stale = append(stale, field)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return r.rdb.HDel(ctx, PresenceKey, stale...).Err()
}
