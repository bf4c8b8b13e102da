package connection

import (
	"slices"
	"sync"
	"time"
)

// Manager 管理本节点所有连接，同时充当在线状态表
// connections 包含匿名连接；users 中每个用户最多对应一个连接，后连接者覆盖
type Manager struct {
	connections map[string]Conn
	users       map[int64]Conn
	mu          sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		connections: make(map[string]Conn),
		users:       make(map[int64]Conn),
	}
}

// Add 注册连接，返回被覆盖的旧连接（不会主动关闭旧连接）
func (m *Manager) Add(conn Conn) (previous Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connections[conn.ID()] = conn
	if conn.UserID() > 0 {
		previous = m.users[conn.UserID()]
		m.users[conn.UserID()] = conn
	}
	return previous
}

// Remove 注销连接；仅当该连接仍是用户的当前连接时才移除在线记录
// 返回值表示用户在线记录是否被移除
func (m *Manager) Remove(conn Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.connections, conn.ID())

	if conn.UserID() <= 0 {
		return false
	}
	current, ok := m.users[conn.UserID()]
	if !ok || current.ID() != conn.ID() {
		return false
	}
	delete(m.users, conn.UserID())
	return true
}

// DetachBefore 用户在其他节点建立了更新的连接：若本节点的当前连接早于 since，
// 将其移出在线表但不关闭，之后只接收广播。返回被移出的连接
func (m *Manager) DetachBefore(userID int64, since time.Time) (Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[userID]
	if !ok || !current.CreateTime().Before(since) {
		return nil, false
	}
	delete(m.users, userID)
	return current, true
}

// GetByUserID 查询用户当前连接
func (m *Manager) GetByUserID(userID int64) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.users[userID]
	return conn, ok
}

// OnlineUserIDs 返回在线用户 ID，升序
func (m *Manager) OnlineUserIDs() []int64 {
	m.mu.RLock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// GetAllConnections 返回所有连接（含匿名连接）
func (m *Manager) GetAllConnections() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]Conn, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast 向所有连接推送，返回成功投递数
func (m *Manager) Broadcast(data []byte) int {
	delivered := 0
	for _, conn := range m.GetAllConnections() {
		if conn.Send(data) == nil {
			delivered++
		}
	}
	return delivered
}

// CloseAll 关闭并清空所有连接（进程退出时调用）
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]Conn, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.connections = make(map[string]Conn)
	m.users = make(map[int64]Conn)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
