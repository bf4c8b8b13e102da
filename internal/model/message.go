package model

import (
	"strings"
	"time"
)

// ChatType 会话类型
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// Message 消息
// 直聊消息 ReceiverID 非空，群聊消息 GroupID 非空，二者互斥
type Message struct {
	ID         int64      `json:"_id,string" db:"id"`
	SenderID   int64      `json:"senderId,string" db:"sender_id"`
	ReceiverID *int64     `json:"receiverId,string,omitempty" db:"receiver_id"`
	GroupID    *int64     `json:"groupId,string,omitempty" db:"group_id"`
	ChatType   ChatType   `json:"chatType" db:"chat_type"`
	Text       string     `json:"text" db:"text"`
	Image      string     `json:"image" db:"image"`
	Seen       bool       `json:"seen" db:"seen"`
	SeenAt     *time.Time `json:"seenAt" db:"seen_at"`
	IsEdited   bool       `json:"isEdited" db:"is_edited"`
	EditedAt   *time.Time `json:"editedAt" db:"edited_at"`
	IsDeleted  bool       `json:"isDeleted" db:"is_deleted"`
	DeletedAt  *time.Time `json:"deletedAt" db:"deleted_at"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsGroup 是否为群聊消息
func (m *Message) IsGroup() bool {
	return m.ChatType == ChatTypeGroup
}

// Peer 返回直聊消息中相对 viewer 的另一方
func (m *Message) Peer(viewerID int64) int64 {
	if m.SenderID == viewerID && m.ReceiverID != nil {
		return *m.ReceiverID
	}
	return m.SenderID
}

// Preview 侧边栏预览文本
func (m *Message) Preview() string {
	switch {
	case m.IsDeleted:
		return "Message deleted"
	case strings.TrimSpace(m.Text) != "":
		return m.Text
	case m.Image != "":
		return "Image"
	default:
		return ""
	}
}

// Tombstone 软删除：清空内容并打上删除标记
func (m *Message) Tombstone(now time.Time) {
	m.Text = ""
	m.Image = ""
	m.IsDeleted = true
	m.DeletedAt = &now
	m.UpdatedAt = now
}
