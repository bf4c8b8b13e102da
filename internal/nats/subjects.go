package nats

// NATS Subject 常量定义
const (
	// SubjectChatEvents 推送事件跨节点转发
	SubjectChatEvents = "im.chat.events"
)
