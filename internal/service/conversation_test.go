package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.chat/internal/model"
)

func TestBuildSidebar(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3, 4)
	ctx := context.Background()

	_, _ = env.messageSvc.SendDirect(ctx, 2, 1, SendInput{Text: "from bob"})
	_, _ = env.messageSvc.SendDirect(ctx, 3, 1, SendInput{Text: "from carol 1"})
	_, _ = env.messageSvc.SendDirect(ctx, 3, 1, SendInput{Text: "from carol 2"})
	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Image: "data:image/png;base64,AAAA"})

	sidebar, err := env.convSvc.BuildSidebar(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sidebar, 3)

	assert.Equal(t, int64(2), sidebar[0].ID)
	assert.Equal(t, "Image", sidebar[0].LastMessage)
	assert.Equal(t, 1, sidebar[0].UnreadCount)

	assert.Equal(t, int64(3), sidebar[1].ID)
	assert.Equal(t, "from carol 2", sidebar[1].LastMessage)
	assert.Equal(t, 2, sidebar[1].UnreadCount)

	assert.Equal(t, int64(4), sidebar[2].ID)
	assert.Nil(t, sidebar[2].LastMessageAt)
	assert.Empty(t, sidebar[2].LastMessage)
	assert.Zero(t, sidebar[2].UnreadCount)

	// 已读后未读数清零
	_, err = env.messageSvc.MarkSeen(ctx, 3, 1)
	require.NoError(t, err)
	sidebar, err = env.convSvc.BuildSidebar(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sidebar[1].UnreadCount)
}

func TestBuildSidebar_DeletedAndGroupMessages(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3)
	ctx := context.Background()

	msg, err := env.messageSvc.SendDirect(ctx, 2, 1, SendInput{Text: "secret"})
	require.NoError(t, err)
	_, err = env.messageSvc.SoftDelete(ctx, msg.ID, 2)
	require.NoError(t, err)

	group, err := env.groupSvc.Create(ctx, 3, "team", []int64{1})
	require.NoError(t, err)
	_, err = env.messageSvc.SendGroup(ctx, 3, group.ID, SendInput{Text: "group chatter"})
	require.NoError(t, err)

	sidebar, err := env.convSvc.BuildSidebar(ctx, 1)
	require.NoError(t, err)
	require.Len(t, sidebar, 2)
	assert.Equal(t, int64(2), sidebar[0].ID)
	assert.Equal(t, "Message deleted", sidebar[0].LastMessage)
	assert.Equal(t, 1, sidebar[0].UnreadCount)
	assert.Equal(t, int64(3), sidebar[1].ID)
	assert.Nil(t, sidebar[1].LastMessageAt)
}

func TestSummarize_OrderIndependent(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	two := int64(2)
	one := int64(1)
	msgs := []*model.Message{
		{ID: 1, SenderID: 1, ReceiverID: &two, ChatType: model.ChatTypeDirect, Text: "old", CreatedAt: base},
		{ID: 3, SenderID: 2, ReceiverID: &one, ChatType: model.ChatTypeDirect, Text: "newest", CreatedAt: base.Add(2 * time.Minute)},
		{ID: 2, SenderID: 2, ReceiverID: &one, ChatType: model.ChatTypeDirect, Text: "middle", CreatedAt: base.Add(time.Minute), Seen: true},
	}
	reversed := []*model.Message{msgs[2], msgs[1], msgs[0]}

	for _, input := range [][]*model.Message{msgs, reversed} {
		sum := summarize(1, input)
		require.Contains(t, sum, int64(2))
		assert.Equal(t, "newest", sum[2].lastMessage)
		assert.Equal(t, base.Add(2*time.Minute), sum[2].lastMessageAt)
		assert.Equal(t, 1, sum[2].unread)
	}
}
