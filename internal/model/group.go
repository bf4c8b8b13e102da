package model

import (
	"slices"
	"time"
)

// Group 群组
// Members 按加入顺序保存，管理员转移时取剩余成员中的第一个
type Group struct {
	ID        int64     `json:"_id,string" db:"id"`
	Name      string    `json:"name" db:"name"`
	AdminID   int64     `json:"admin,string" db:"admin_id"`
	Members   IDList    `json:"members" db:"-"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// IsMember 判断用户是否为群成员
func (g *Group) IsMember(userID int64) bool {
	return slices.Contains(g.Members, userID)
}

// IsAdmin 判断用户是否为管理员
func (g *Group) IsAdmin(userID int64) bool {
	return g.AdminID == userID
}

// Without 返回去掉指定用户后的成员列表，不修改原切片
func (g *Group) Without(userID int64) IDList {
	remaining := make(IDList, 0, len(g.Members))
	for _, id := range g.Members {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	return remaining
}

// GroupView 群组详情（成员与管理员展开为用户信息）
type GroupView struct {
	ID        int64        `json:"_id,string"`
	Name      string       `json:"name"`
	Admin     PublicUser   `json:"admin"`
	Members   []PublicUser `json:"members"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
