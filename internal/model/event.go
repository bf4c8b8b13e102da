package model

// 推送事件名
const (
	EventGetOnlineUsers      = "getOnlineUsers"
	EventNewMessage          = "newMessage"
	EventNewGroupMessage     = "newGroupMessage"
	EventMessageUpdated      = "messageUpdated"
	EventMessageDeleted      = "messageDeleted"
	EventTyping              = "typing"
	EventStopTyping          = "stopTyping"
	EventGroupUpdated        = "groupUpdated"
	EventGroupRemoved        = "groupRemoved"
	EventGroupDeleted        = "groupDeleted"
	EventConversationCleared = "conversationCleared"

	// EventSessionTakeover 节点间事件，不推送给客户端
	EventSessionTakeover = "sessionTakeover"
)

// Envelope 推送帧：{"event": "...", "data": {...}}
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// InboundFrame 客户端上行帧，Data 延迟解析
type InboundFrame struct {
	Event string     `json:"event"`
	Data  TypingData `json:"data"`
}

// TypingData 输入状态上行数据
type TypingData struct {
	ChatType   ChatType `json:"chatType"`
	ReceiverID int64    `json:"receiverId,string,omitempty"`
	GroupID    int64    `json:"groupId,string,omitempty"`
	SenderName string   `json:"senderName,omitempty"`
}

// TypingPayload 输入状态下行数据，SenderID 取自连接身份
type TypingPayload struct {
	ChatType   ChatType `json:"chatType"`
	SenderID   int64    `json:"senderId,string"`
	SenderName string   `json:"senderName,omitempty"`
	GroupID    int64    `json:"groupId,string,omitempty"`
}

// GroupRef 仅包含群 ID 的事件数据（groupRemoved / groupDeleted）
type GroupRef struct {
	GroupID int64 `json:"groupId,string"`
}

// ConversationCleared 会话清空事件数据
type ConversationCleared struct {
	ChatType ChatType `json:"chatType"`
	PeerID   int64    `json:"peerId,string,omitempty"`
	GroupID  int64    `json:"groupId,string,omitempty"`
}

// RemoteEvent 跨节点转发的推送事件
// Targets 为空表示广播到所有连接（在线列表快照）
// ConnectedAt 仅用于 sessionTakeover，为新连接建立时间（UnixNano）
type RemoteEvent struct {
	OriginNode  int64   `json:"originNode"`
	Event       string  `json:"event"`
	Frame       []byte  `json:"frame,omitempty"`
	Targets     []int64 `json:"targets,omitempty"`
	ConnectedAt int64   `json:"connectedAt,omitempty"`
}
