package task

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypePurgeGroupMessages 清理已删除群组的残留消息
	TypePurgeGroupMessages = "chat:purge_group_messages"

	// QueueMaintenance 后台维护队列
	QueueMaintenance = "maintenance"
)

// PurgeGroupPayload 群消息清理任务参数
type PurgeGroupPayload struct {
	GroupID int64 `json:"groupId,string"`
}

// NewPurgeGroupTask 构建群消息清理任务
func NewPurgeGroupTask(groupID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(PurgeGroupPayload{GroupID: groupID})
	if err != nil {
		return nil, fmt.Errorf("task: marshal purge payload: %w", err)
	}
	return asynq.NewTask(TypePurgeGroupMessages, payload), nil
}
