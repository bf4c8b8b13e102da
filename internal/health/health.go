package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusDisabled     = "disabled"

	pingTimeout = 2 * time.Second
)

// Status 健康状态
type Status struct {
	NATS        string `json:"nats"`
	Redis       string `json:"redis"`
	Database    string `json:"database"`
	Connections int    `json:"connections"`
}

// Healthy NATS 未启用时不参与判断
func (s *Status) Healthy() bool {
	return s.Redis == StatusConnected &&
		s.Database == StatusConnected &&
		s.NATS != StatusDisconnected
}

// Checker 健康检查器
type Checker struct {
	natsConnected func() bool
	pingRedis     func(ctx context.Context) error
	pingDB        func(ctx context.Context) error
	connections   func() int
}

// NewChecker 创建健康检查器，nc 为 nil 表示未启用 NATS
func NewChecker(nc *nats.Conn, redisClient *redis.Client, db *pgxpool.Pool, connections func() int) *Checker {
	h := &Checker{
		pingRedis: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
		pingDB:      db.Ping,
		connections: connections,
	}
	if nc != nil {
		h.natsConnected = nc.IsConnected
	}
	return h
}

// Check 执行健康检查
func (h *Checker) Check(ctx context.Context) *Status {
	status := &Status{
		NATS:     StatusDisabled,
		Redis:    StatusDisconnected,
		Database: StatusDisconnected,
	}

	if h.natsConnected != nil {
		status.NATS = StatusDisconnected
		if h.natsConnected() {
			status.NATS = StatusConnected
		}
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, pingTimeout)
	defer redisCancel()
	if err := h.pingRedis(redisCtx); err == nil {
		status.Redis = StatusConnected
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, pingTimeout)
	defer dbCancel()
	if err := h.pingDB(dbCtx); err == nil {
		status.Database = StatusConnected
	}

	if h.connections != nil {
		status.Connections = h.connections()
	}
	return status
}

// Live 存活探针，进程可响应即返回 200
func (h *Checker) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪探针，依赖不可用时返回 503
func (h *Checker) Ready(c *gin.Context) {
	status := h.Check(c.Request.Context())
	if !status.Healthy() {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
