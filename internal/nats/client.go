package nats

import (
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/metrics"
)

// Client NATS 客户端封装
// 连接状态变化记入 chat_nats_connection_events_total，便于发现跨节点推送中断
type Client struct {
	conn   *nats.Conn
	name   string
	logger *slog.Logger
}

// NewClient 创建 NATS 客户端，name 用于在 NATS 监控中区分节点
func NewClient(cfg config.NATSConfig, name string) (*Client, error) {
	c := &Client{
		name:   name,
		logger: slog.Default().With("nats_client", name),
	}

	conn, err := nats.Connect(cfg.URL, c.options(cfg)...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) options(cfg config.NATSConfig) []nats.Option {
	return []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(10 * time.Second),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
		nats.ClosedHandler(c.onClosed),
		nats.ErrorHandler(c.onAsyncError),
	}
}

func (c *Client) onDisconnect(_ *nats.Conn, err error) {
	metrics.NATSConnectionEvents.WithLabelValues(metrics.NATSDisconnected).Inc()
	c.logger.Warn("Disconnected from NATS, cross-node delivery paused", "error", err)
}

func (c *Client) onReconnect(nc *nats.Conn) {
	metrics.NATSConnectionEvents.WithLabelValues(metrics.NATSReconnected).Inc()
	c.logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
}

func (c *Client) onClosed(_ *nats.Conn) {
	metrics.NATSConnectionEvents.WithLabelValues(metrics.NATSClosed).Inc()
	c.logger.Info("NATS connection closed")
}

// onAsyncError 异步错误（如慢消费者丢弃消息）只记录，不中断订阅
func (c *Client) onAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	metrics.NATSConnectionEvents.WithLabelValues(metrics.NATSError).Inc()
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	c.logger.Error("NATS async error", "subject", subject, "error", err)
}

// Conn 返回底层 NATS 连接
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Close 排空订阅后关闭连接
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("Failed to drain NATS connection", "error", err)
		c.conn.Close()
	}
}
