package nats

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.im.chat/internal/model"
)

// EventPublisher 推送事件发布器
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// Publish 将事件转发给其他节点
func (p *EventPublisher) Publish(event *model.RemoteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal remote event", "error", err)
		return err
	}

	if err := p.nc.Publish(SubjectChatEvents, data); err != nil {
		p.logger.Error("Failed to publish remote event", "event", event.Event, "error", err)
		return err
	}

	p.logger.Debug("Published remote event", "event", event.Event, "targets", len(event.Targets))
	return nil
}
