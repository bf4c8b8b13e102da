package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sudooom.im.chat/internal/connection"
	"sudooom.im.chat/internal/model"
	"sudooom.im.chat/internal/repository"
)

// ============== 内存存储 ==============

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int64]*model.User)}
}

func (m *memUsers) add(id int64, name string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: id, FullName: name, Email: strings.ToLower(name) + "@example.com", CreatedAt: time.Now()}
	m.users[id] = u
	return u
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) ExistsByFullName(_ context.Context, fullName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.FullName, fullName) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfilePic(_ context.Context, id int64, url string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.ProfilePic = url
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) ListExcept(_ context.Context, id int64) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.users {
		if u.ID != id {
			cp := *u
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.User) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memUsers) ListByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memMessages struct {
	mu        sync.Mutex
	messages  map[int64]*model.Message
	purgeErr  error
	purgeHits int
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[int64]*model.Message)}
}

func (m *memMessages) Create(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id int64) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) Update(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		return repository.ErrMessageNotFound
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memMessages) MarkSeen(_ context.Context, peerID, viewerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, msg := range m.messages {
		if isDirectBetween(msg, peerID, viewerID) && msg.SenderID == peerID && !msg.Seen {
			msg.Seen = true
			msg.SeenAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memMessages) ListDirect(_ context.Context, userA, userB int64) ([]*model.Message, error) {
	return m.filter(func(msg *model.Message) bool { return isDirectBetween(msg, userA, userB) }, false), nil
}

func (m *memMessages) ListGroup(_ context.Context, groupID int64) ([]*model.Message, error) {
	return m.filter(func(msg *model.Message) bool {
		return msg.IsGroup() && msg.GroupID != nil && *msg.GroupID == groupID
	}, false), nil
}

func (m *memMessages) ListInvolving(_ context.Context, userID int64) ([]*model.Message, error) {
	return m.filter(func(msg *model.Message) bool {
		return !msg.IsGroup() && (msg.SenderID == userID || (msg.ReceiverID != nil && *msg.ReceiverID == userID))
	}, true), nil
}

func (m *memMessages) DeleteDirect(_ context.Context, userA, userB int64) (int64, error) {
	return m.delete(func(msg *model.Message) bool { return isDirectBetween(msg, userA, userB) }), nil
}

func (m *memMessages) DeleteByGroup(_ context.Context, groupID int64) (int64, error) {
	m.mu.Lock()
	m.purgeHits++
	err := m.purgeErr
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return m.delete(func(msg *model.Message) bool {
		return msg.IsGroup() && msg.GroupID != nil && *msg.GroupID == groupID
	}), nil
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memMessages) filter(keep func(*model.Message) bool, desc bool) []*model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Message
	for _, msg := range m.messages {
		if keep(msg) {
			cp := *msg
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Message) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = int(a.ID - b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
	return out
}

func (m *memMessages) delete(match func(*model.Message) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, msg := range m.messages {
		if match(msg) {
			delete(m.messages, id)
			n++
		}
	}
	return n
}

func isDirectBetween(msg *model.Message, a, b int64) bool {
	if msg.IsGroup() || msg.ReceiverID == nil {
		return false
	}
	r := *msg.ReceiverID
	return (msg.SenderID == a && r == b) || (msg.SenderID == b && r == a)
}

type memGroups struct {
	mu     sync.Mutex
	groups map[int64]*model.Group
	clock  time.Time
}

func newMemGroups() *memGroups {
	return &memGroups{groups: make(map[int64]*model.Group), clock: time.Now()}
}

func (m *memGroups) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memGroups) Create(_ context.Context, group *model.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()
	group.CreatedAt, group.UpdatedAt = now, now
	cp := *group
	cp.Members = slices.Clone(group.Members)
	m.groups[group.ID] = &cp
	return nil
}

func (m *memGroups) GetByID(_ context.Context, id int64) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	cp := *g
	cp.Members = slices.Clone(g.Members)
	return &cp, nil
}

func (m *memGroups) ListByMember(_ context.Context, userID int64) ([]*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Group
	for _, g := range m.groups {
		if g.IsMember(userID) {
			cp := *g
			cp.Members = slices.Clone(g.Members)
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *model.Group) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out, nil
}

// UpdateMembership 整个读改写过程持有锁，与数据库的行锁语义一致
func (m *memGroups) UpdateMembership(_ context.Context, id int64, apply func(group *model.Group) error) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	cp := *g
	cp.Members = slices.Clone(g.Members)
	if err := apply(&cp); err != nil {
		return nil, err
	}
	if len(cp.Members) == 0 {
		delete(m.groups, id)
		return &cp, nil
	}
	cp.UpdatedAt = m.tick()
	stored := cp
	stored.Members = slices.Clone(cp.Members)
	m.groups[id] = &stored
	return &cp, nil
}

func (m *memGroups) exists(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.groups[id]
	return ok
}

type memSessions struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memSessions) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *memSessions) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type memResetTokens struct {
	mu     sync.Mutex
	tokens map[string]int64
}

func (m *memResetTokens) Save(_ context.Context, tokenHash string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = make(map[string]int64)
	}
	m.tokens[tokenHash] = userID
	return nil
}

func (m *memResetTokens) Consume(_ context.Context, tokenHash string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[tokenHash]
	if !ok {
		return 0, repository.ErrResetTokenNotFound
	}
	delete(m.tokens, tokenHash)
	return id, nil
}

type fakeUploader struct {
	calls int
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, payload string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/uploads/" + payload[:min(4, len(payload))] + ".png", nil
}

type fakePurger struct {
	groups []int64
}

func (f *fakePurger) EnqueueGroupPurge(_ context.Context, groupID int64) error {
	f.groups = append(f.groups, groupID)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*model.RemoteEvent
	err    error
}

func (f *fakePublisher) Publish(event *model.RemoteEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() int64 { return s.n.Add(1) + 1000 }

// ============== 推送连接 ==============

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type recordingConn struct {
	id        string
	userID    int64
	createdAt time.Time
	mu        sync.Mutex
	frames    []frame
	closed    bool
}

func (c *recordingConn) ID() string                { return c.id }
func (c *recordingConn) UserID() int64             { return c.userID }
func (c *recordingConn) CreateTime() time.Time     { return c.createdAt }
func (c *recordingConn) LastActiveTime() time.Time { return time.Now() }

func (c *recordingConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return connection.ErrConnectionClosed
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.frames = append(c.frames, f)
	return nil
}

// events 返回收到的事件名（按顺序）
func (c *recordingConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Event)
	}
	return out
}

// last 返回最后一个指定事件
func (c *recordingConn) last(t *testing.T, event string, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Event == event {
			require.NoError(t, json.Unmarshal(c.frames[i].Data, v))
			return
		}
	}
	t.Fatalf("event %q not received, got %v", event, c.frames)
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// ============== 测试环境 ==============

type testEnv struct {
	users      *memUsers
	messages   *memMessages
	groups     *memGroups
	uploader   *fakeUploader
	purger     *fakePurger
	manager    *connection.Manager
	dispatcher *DispatcherService
	resolver   *Resolver
	messageSvc *MessageService
	groupSvc   *GroupService
	convSvc    *ConversationService
	typingSvc  *TypingService
	clock      time.Time
	connSeq    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    newMemUsers(),
		messages: newMemMessages(),
		groups:   newMemGroups(),
		uploader: &fakeUploader{},
		purger:   &fakePurger{},
		manager:  connection.NewManager(),
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	ids := &seqIDs{}
	env.dispatcher = NewDispatcherService(env.manager, 1)
	env.resolver = NewResolver(env.users, env.groups)
	env.messageSvc = NewMessageService(env.messages, env.resolver, env.uploader, env.dispatcher, ids)
	env.messageSvc.now = func() time.Time {
		env.clock = env.clock.Add(time.Second)
		return env.clock
	}
	env.groupSvc = NewGroupService(env.groups, env.messages, env.users, env.dispatcher, env.purger, ids)
	env.convSvc = NewConversationService(env.users, env.messages)
	env.typingSvc = NewTypingService(env.resolver, env.dispatcher)
	return env
}

// connect 注册一个在线用户连接
func (e *testEnv) connect(userID int64) *recordingConn {
	e.connSeq++
	conn := &recordingConn{id: fmt.Sprintf("conn-%d-%d", userID, e.connSeq), userID: userID, createdAt: time.Now()}
	e.manager.Add(conn)
	return conn
}

var errBoom = errors.New("boom")

func mustParseID(t *testing.T, s string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return id
}
