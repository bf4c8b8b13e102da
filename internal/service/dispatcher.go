package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"sudooom.im.chat/internal/connection"
	"sudooom.im.chat/internal/metrics"
	"sudooom.im.chat/internal/model"
)

// DispatcherService 推送分发服务
// 尽力而为：不在线的用户直接跳过，不缓存、不重试，推送失败不会影响调用方
type DispatcherService struct {
	manager   *connection.Manager
	publisher EventPublisher
	nodeID    int64
	logger    *slog.Logger
}

// NewDispatcherService 创建推送分发服务
func NewDispatcherService(manager *connection.Manager, nodeID int64) *DispatcherService {
	return &DispatcherService{
		manager: manager,
		nodeID:  nodeID,
		logger:  slog.Default(),
	}
}

// SetPublisher 启用跨节点转发；本节点不在线的目标交给其他节点投递
func (s *DispatcherService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// Notify 推送事件给指定用户，重复的目标只投递一次
func (s *DispatcherService) Notify(event string, payload any, targets ...int64) {
	if len(targets) == 0 {
		return
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		s.logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	absent := s.deliverLocal(event, frame, model.IDList(targets).Unique())
	if len(absent) == 0 || s.publisher == nil {
		return
	}

	err = s.publisher.Publish(&model.RemoteEvent{
		OriginNode: s.nodeID,
		Event:      event,
		Frame:      frame,
		Targets:    absent,
	})
	if err != nil {
		s.logger.Warn("Failed to forward event to other nodes", "event", event, "targets", len(absent), "error", err)
		return
	}
	metrics.FanoutDeliveries.WithLabelValues(event, metrics.ResultRemote).Add(float64(len(absent)))
}

// Broadcast 推送事件给所有连接（包括匿名连接）
func (s *DispatcherService) Broadcast(event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		s.logger.Error("Failed to encode event", "event", event, "error", err)
		return
	}

	delivered := s.manager.Broadcast(frame)
	metrics.FanoutDeliveries.WithLabelValues(event, metrics.ResultDelivered).Add(float64(delivered))

	if s.publisher == nil {
		return
	}
	err = s.publisher.Publish(&model.RemoteEvent{OriginNode: s.nodeID, Event: event, Frame: frame})
	if err != nil {
		s.logger.Warn("Failed to forward broadcast to other nodes", "event", event, "error", err)
	}
}

// Takeover 通知其他节点用户已在本节点建立新连接
// 其他节点上更早的连接随即移出在线表，保证定向推送只到达最新连接
func (s *DispatcherService) Takeover(userID int64, connectedAt time.Time) {
	if s.publisher == nil || userID <= 0 {
		return
	}
	err := s.publisher.Publish(&model.RemoteEvent{
		OriginNode:  s.nodeID,
		Event:       model.EventSessionTakeover,
		Targets:     []int64{userID},
		ConnectedAt: connectedAt.UnixNano(),
	})
	if err != nil {
		s.logger.Warn("Failed to announce session takeover", "userId", userID, "error", err)
	}
}

// HandleRemoteEvent 投递其他节点转发来的事件
func (s *DispatcherService) HandleRemoteEvent(_ context.Context, event *model.RemoteEvent) {
	if event.Event == model.EventSessionTakeover {
		s.detach(event)
		return
	}
	if len(event.Targets) == 0 {
		s.manager.Broadcast(event.Frame)
		return
	}
	s.deliverLocal(event.Event, event.Frame, event.Targets)
}

func (s *DispatcherService) detach(event *model.RemoteEvent) {
	since := time.Unix(0, event.ConnectedAt)
	for _, userID := range event.Targets {
		conn, ok := s.manager.DetachBefore(userID, since)
		if !ok {
			continue
		}
		s.logger.Info("User connection superseded by another node",
			"userId", userID,
			"connId", conn.ID(),
			"originNode", event.OriginNode)
	}
	metrics.UsersOnline.Set(float64(len(s.manager.OnlineUserIDs())))
}

// deliverLocal 投递给本节点在线的目标，返回不在本节点的目标
func (s *DispatcherService) deliverLocal(event string, frame []byte, targets []int64) []int64 {
	var absent []int64
	for _, userID := range targets {
		conn, ok := s.manager.GetByUserID(userID)
		if !ok {
			absent = append(absent, userID)
			metrics.FanoutDeliveries.WithLabelValues(event, metrics.ResultAbsent).Inc()
			continue
		}
		if err := conn.Send(frame); err != nil {
			s.logger.Warn("Failed to push event",
				"event", event,
				"userId", userID,
				"connId", conn.ID(),
				"error", err)
			metrics.FanoutDeliveries.WithLabelValues(event, metrics.ResultFailed).Inc()
			continue
		}
		metrics.FanoutDeliveries.WithLabelValues(event, metrics.ResultDelivered).Inc()
	}
	return absent
}

func encodeFrame(event string, payload any) ([]byte, error) {
	return json.Marshal(model.Envelope{Event: event, Data: payload})
}
