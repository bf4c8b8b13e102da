package model

import "time"

// User 用户模型
type User struct {
	ID           int64     `json:"_id,string" db:"id"`
	FullName     string    `json:"fullName" db:"full_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	ProfilePic   string    `json:"profilePic" db:"profile_pic"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// PublicUser 对外可见的用户信息（群成员、侧边栏）
type PublicUser struct {
	ID         int64  `json:"_id,string"`
	FullName   string `json:"fullName"`
	Email      string `json:"email,omitempty"`
	ProfilePic string `json:"profilePic"`
}

// Public 转换为对外可见信息
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}

// SidebarUser 侧边栏会话摘要
type SidebarUser struct {
	PublicUser
	LastMessage   string     `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	UnreadCount   int        `json:"unreadCount"`
}
