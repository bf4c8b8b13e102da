package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"sudooom.im.chat/internal/config"
)

// Client 任务投递客户端，实现 service.PurgeScheduler
type Client struct {
	client   *asynq.Client
	maxRetry int
	logger   *slog.Logger
}

// RedisOpt 由应用 Redis 配置构建 asynq 连接参数
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewClient 创建任务客户端
func NewClient(redisCfg config.RedisConfig, taskCfg config.TaskConfig) *Client {
	return &Client{
		client:   asynq.NewClient(RedisOpt(redisCfg)),
		maxRetry: taskCfg.MaxRetry,
		logger:   slog.Default(),
	}
}

// EnqueueGroupPurge 投递群消息清理任务，同一群组以群 ID 作为任务 ID 去重
func (c *Client) EnqueueGroupPurge(ctx context.Context, groupID int64) error {
	t, err := NewPurgeGroupTask(groupID)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(QueueMaintenance),
		asynq.TaskID(fmt.Sprintf("purge-group-%d", groupID)),
		asynq.Retention(time.Hour),
	}
	if c.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.maxRetry))
	}

	info, err := c.client.EnqueueContext(ctx, t, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			c.logger.Debug("Group purge already scheduled", "groupId", groupID)
			return nil
		}
		return fmt.Errorf("task: enqueue group purge: %w", err)
	}

	c.logger.Info("Group purge scheduled", "groupId", groupID, "taskId", info.ID, "queue", info.Queue)
	return nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.client.Close()
}
