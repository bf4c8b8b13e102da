package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"sudooom.im.chat/internal/model"
)

// EventHandler 远端事件处理器
type EventHandler interface {
	HandleRemoteEvent(ctx context.Context, event *model.RemoteEvent)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 消息缓冲区大小
}

// EventSubscriber 事件订阅器
// 每个节点都订阅全部事件（非队列组），自己发布的事件直接丢弃
type EventSubscriber struct {
	nc           *nats.Conn
	nodeID       int64
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewEventSubscriber 创建事件订阅器
func NewEventSubscriber(nc *nats.Conn, nodeID int64, handler EventHandler, config SubscriberConfig) *EventSubscriber {
	// 单 worker 保证同一连接上的推送顺序与发布顺序一致
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 10000
	}

	return &EventSubscriber{
		nc:      nc,
		nodeID:  nodeID,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动订阅
func (s *EventSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	sub, err := s.nc.Subscribe(SubjectChatEvents, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			s.logger.Warn("Event buffer full, dropping event", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS subscriber started",
		"subject", SubjectChatEvents,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

func (s *EventSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.handle(ctx, msg.Data)
		}
	}
}

func (s *EventSubscriber) handle(ctx context.Context, data []byte) {
	var event model.RemoteEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Error("Failed to unmarshal remote event", "error", err)
		return
	}
	if event.OriginNode == s.nodeID {
		return
	}
	s.handler.HandleRemoteEvent(ctx, &event)
}

// Stop 停止订阅并等待 worker 退出
func (s *EventSubscriber) Stop() {
	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Warn("Failed to unsubscribe", "error", err)
		}
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.wg.Wait()
	s.logger.Info("NATS subscriber stopped")
}
