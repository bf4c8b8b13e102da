package connection

import (
	"context"
	"log/slog"
	"time"

	"sudooom.im.chat/internal/metrics"
)

// HeartbeatChecker 空闲连接检测器
// 连接在 timeout 内没有任何上行数据或 pong 时被关闭，随后由读循环完成下线流程
type HeartbeatChecker struct {
	manager       *Manager
	timeout       time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	onTimeout     func(conn Conn)
}

// NewHeartbeatChecker 创建心跳检测器，onTimeout 可以为 nil
func NewHeartbeatChecker(manager *Manager, timeout, checkInterval time.Duration, logger *slog.Logger, onTimeout func(conn Conn)) *HeartbeatChecker {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 30 * time.Second
	}

	return &HeartbeatChecker{
		manager:       manager,
		timeout:       timeout,
		checkInterval: checkInterval,
		logger:        logger,
		onTimeout:     onTimeout,
	}
}

// Start 启动检测（阻塞，应在 goroutine 中调用）
func (h *HeartbeatChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	h.logger.Info("Heartbeat checker started",
		"timeout", h.timeout,
		"check_interval", h.checkInterval)

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Heartbeat checker stopped")
			return
		case <-ticker.C:
			h.Check(time.Now())
		}
	}
}

// Check 关闭在 now 之前已超时的连接，返回关闭数量
func (h *HeartbeatChecker) Check(now time.Time) int {
	closed := 0
	for _, conn := range h.manager.GetAllConnections() {
		if now.Sub(conn.LastActiveTime()) <= h.timeout {
			continue
		}
		closed++
		h.logger.Debug("Connection heartbeat timeout",
			"conn_id", conn.ID(),
			"user_id", conn.UserID(),
			"last_active", conn.LastActiveTime())

		metrics.HeartbeatTimeouts.Inc()
		if h.onTimeout != nil {
			h.onTimeout(conn)
		}
		conn.Close()
	}
	if closed > 0 {
		h.logger.Info("Closed idle connections", "count", closed)
	}
	return closed
}
