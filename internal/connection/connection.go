package connection

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// Conn 推送通道，Presence Registry 只依赖该接口
type Conn interface {
	ID() string
	UserID() int64
	Send(data []byte) error
	Close()
	CreateTime() time.Time
	LastActiveTime() time.Time
}

// Options 连接参数
type Options struct {
	SendBufferSize int
	PongWait       time.Duration
}

// Connection 基于 websocket 的客户端连接
// 所有写操作经由 writeChan 串行化到单个 writeLoop，保证同一连接上的推送顺序
type Connection struct {
	id         string
	userID     int64
	ws         *websocket.Conn
	logger     *slog.Logger
	writeChan  chan []byte
	closeChan  chan struct{}
	closeOnce  sync.Once
	pongWait   time.Duration
	createTime time.Time
	lastActive atomic.Int64
}

// NewConnection 创建连接并启动写循环，userID 为 0 表示匿名连接
func NewConnection(ws *websocket.Conn, userID int64, opts Options, logger *slog.Logger) *Connection {
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	c := &Connection{
		id:         uuid.NewString(),
		userID:     userID,
		ws:         ws,
		logger:     logger,
		writeChan:  make(chan []byte, opts.SendBufferSize),
		closeChan:  make(chan struct{}),
		pongWait:   opts.PongWait,
		createTime: time.Now(),
	}
	c.touch()
	go c.writeLoop()
	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) CreateTime() time.Time {
	return c.createTime
}

// LastActiveTime 最近一次收到客户端数据或 pong 的时间
func (c *Connection) LastActiveTime() time.Time {
	return time.Unix(0, c.lastActive.Load())
}

func (c *Connection) touch() {
	c.lastActive.Store(time.Now().UnixNano())
}

// Send 投递数据到写队列；慢客户端写满缓冲区时直接断开
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeChan <- data:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
		c.logger.Warn("Send buffer full, closing connection", "conn_id", c.id, "user_id", c.userID)
		c.Close()
		return ErrSendBufferFull
	}
}

// ReadLoop 阻塞读取客户端帧直到连接断开，每个文本帧交给 handle 处理
func (c *Connection) ReadLoop(handle func(data []byte)) error {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.touch()
		return c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		if msgType != websocket.TextMessage {
			continue
		}
		handle(data)
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.writeChan:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.logger.Debug("Failed to write to websocket", "conn_id", c.id, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

func (c *Connection) write(msgType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(msgType, data)
}

// Close 关闭连接，可重复调用
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "connection closed"),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}
