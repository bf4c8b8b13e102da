package repository

import (
	"fmt"
	"time"
)

const (
	// SessionRevokedKeyPrefix 已注销会话前缀: im:chat:session:revoked:{jti}
	SessionRevokedKeyPrefix = "im:chat:session:revoked:"

	// ResetTokenKeyPrefix 密码重置 Token 前缀: im:chat:reset:{sha256(token)} -> userId
	ResetTokenKeyPrefix = "im:chat:reset:"

	// PresenceKey 在线用户 Hash: userId -> nodeId:connId
	PresenceKey = "im:chat:presence"

	// ResetTokenTTL 重置 Token 有效期
	ResetTokenTTL = 15 * time.Minute
)

// BuildSessionRevokedKey 构建会话注销 Key
func BuildSessionRevokedKey(tokenID string) string {
	return SessionRevokedKeyPrefix + tokenID
}

// BuildResetTokenKey 构建重置 Token Key
func BuildResetTokenKey(tokenHash string) string {
	return ResetTokenKeyPrefix + tokenHash
}

// BuildPresenceOwner 构建在线记录的值，用于按连接身份删除
func BuildPresenceOwner(nodeID int64, connID string) string {
	return fmt.Sprintf("%d:%s", nodeID, connID)
}
