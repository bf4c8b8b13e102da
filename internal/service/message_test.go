package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.im.chat/internal/model"
	appErrors "sudooom.im.chat/pkg/errors"
)

func seedUsers(env *testEnv, ids ...int64) {
	names := map[int64]string{1: "Alice", 2: "Bob", 3: "Carol", 4: "Dave", 5: "Erin"}
	for _, id := range ids {
		env.users.add(id, names[id])
	}
}

func TestSendDirect_DeliversToReceiverOnly(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	alice := env.connect(1)
	bob := env.connect(2)

	msg, err := env.messageSvc.SendDirect(context.Background(), 1, 2, SendInput{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, model.ChatTypeDirect, msg.ChatType)
	assert.Equal(t, int64(2), *msg.ReceiverID)
	assert.False(t, msg.Seen)
	assert.Empty(t, alice.events())

	var got struct {
		ID       string `json:"_id"`
		SenderID string `json:"senderId"`
		Text     string `json:"text"`
	}
	bob.last(t, model.EventNewMessage, &got)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, "1", got.SenderID)
}

func TestSendDirect_OfflineReceiverStillPersists(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)

	_, err := env.messageSvc.SendDirect(context.Background(), 1, 2, SendInput{Text: "hi"})
	require.NoError(t, err)

	msgs, err := env.messageSvc.ListDirect(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Seen)
}

func TestSendDirect_Validation(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	ctx := context.Background()

	_, err := env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "   "})
	assert.True(t, appErrors.Is(err, appErrors.ErrTextRequired))

	_, err = env.messageSvc.SendDirect(ctx, 1, 1, SendInput{Text: "me"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRecipient))

	_, err = env.messageSvc.SendDirect(ctx, 1, 99, SendInput{Text: "ghost"})
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRecipient))

	assert.Zero(t, env.messages.count())
	assert.Zero(t, env.uploader.calls)
}

func TestSendDirect_ImageOnly(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)

	msg, err := env.messageSvc.SendDirect(context.Background(), 1, 2, SendInput{Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.Image)
	assert.Equal(t, "Image", msg.Preview())

	env.uploader.err = errBoom
	_, err = env.messageSvc.SendDirect(context.Background(), 1, 2, SendInput{Image: "data:image/png;base64,AAAA"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUploadFailed))
	assert.Equal(t, 1, env.messages.count())
}

func TestListDirect_BothDirectionsAscending(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3)
	ctx := context.Background()

	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "one"})
	_, _ = env.messageSvc.SendDirect(ctx, 2, 1, SendInput{Text: "two"})
	_, _ = env.messageSvc.SendDirect(ctx, 1, 3, SendInput{Text: "other"})
	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "three"})

	msgs, err := env.messageSvc.ListDirect(ctx, 2, 1)
	require.NoError(t, err)
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)

	empty, err := env.messageSvc.ListDirect(ctx, 2, 3)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMarkSeen_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	ctx := context.Background()

	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "a"})
	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "b"})
	_, _ = env.messageSvc.SendDirect(ctx, 2, 1, SendInput{Text: "reply"})

	n, err := env.messageSvc.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = env.messageSvc.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, _ := env.messageSvc.ListDirect(ctx, 1, 2)
	for _, m := range msgs {
		if m.SenderID == 1 {
			assert.True(t, m.Seen)
			assert.NotNil(t, m.SeenAt)
		} else {
			assert.False(t, m.Seen, "messages sent by the viewer stay untouched")
		}
	}
}

func TestEdit_Rules(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	ctx := context.Background()
	alice := env.connect(1)
	bob := env.connect(2)

	msg, err := env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "helo"})
	require.NoError(t, err)

	_, err = env.messageSvc.Edit(ctx, msg.ID, 1, "   ")
	assert.True(t, appErrors.Is(err, appErrors.ErrTextRequired))

	_, err = env.messageSvc.Edit(ctx, 424242, 1, "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrMessageNotFound))

	_, err = env.messageSvc.Edit(ctx, msg.ID, 2, "hijack")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotMessageOwner))
	assert.Equal(t, appErrors.ErrNotMessageOwner.Message, appErrors.GetMessage(err))

	bob.reset()
	edited, err := env.messageSvc.Edit(ctx, msg.ID, 1, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Text)
	assert.True(t, edited.IsEdited)
	assert.NotNil(t, edited.EditedAt)

	assert.Contains(t, alice.events(), model.EventMessageUpdated)
	assert.Equal(t, []string{model.EventMessageUpdated}, bob.events())
}

func TestSoftDelete_Tombstone(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	ctx := context.Background()
	bob := env.connect(2)

	msg, err := env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "oops", Image: "data:image/png;base64,AAAA"})
	require.NoError(t, err)

	_, err = env.messageSvc.SoftDelete(ctx, msg.ID, 2)
	assert.True(t, appErrors.Is(err, appErrors.ErrDeleteNotOwner))

	deleted, err := env.messageSvc.SoftDelete(ctx, msg.ID, 1)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Empty(t, deleted.Text)
	assert.Empty(t, deleted.Image)
	assert.NotNil(t, deleted.DeletedAt)
	assert.Contains(t, bob.events(), model.EventMessageDeleted)

	// 记录保留在历史中
	msgs, _ := env.messageSvc.ListDirect(ctx, 1, 2)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsDeleted)

	_, err = env.messageSvc.Edit(ctx, msg.ID, 1, "again")
	assert.True(t, appErrors.Is(err, appErrors.ErrMessageDeleted))
}

func TestSendGroup_DeliversToAllMembers(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3, 4)
	ctx := context.Background()
	group, err := env.groupSvc.Create(ctx, 1, "team", []int64{2, 3})
	require.NoError(t, err)

	conns := map[int64]*recordingConn{}
	for _, id := range []int64{1, 2, 3, 4} {
		conns[id] = env.connect(id)
	}

	msg, err := env.messageSvc.SendGroup(ctx, 2, group.ID, SendInput{Text: "hey all"})
	require.NoError(t, err)
	assert.Equal(t, model.ChatTypeGroup, msg.ChatType)
	assert.Nil(t, msg.ReceiverID)

	for _, id := range []int64{1, 2, 3} {
		assert.Equal(t, []string{model.EventNewGroupMessage}, conns[id].events(), "member %d", id)
	}
	assert.Empty(t, conns[4].events())

	_, err = env.messageSvc.SendGroup(ctx, 4, group.ID, SendInput{Text: "let me in"})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotGroupMember))

	_, err = env.messageSvc.SendGroup(ctx, 1, 987654, SendInput{Text: "void"})
	assert.True(t, appErrors.Is(err, appErrors.ErrGroupNotFound))
}

func TestListGroup_MembersOnly(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3)
	ctx := context.Background()
	group, err := env.groupSvc.Create(ctx, 1, "team", []int64{2})
	require.NoError(t, err)

	_, _ = env.messageSvc.SendGroup(ctx, 1, group.ID, SendInput{Text: "first"})
	_, _ = env.messageSvc.SendGroup(ctx, 2, group.ID, SendInput{Text: "second"})

	msgs, err := env.messageSvc.ListGroup(ctx, 2, group.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)

	_, err = env.messageSvc.ListGroup(ctx, 3, group.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotGroupMember))
}

func TestClearDirect_NotifiesPeer(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2, 3)
	ctx := context.Background()
	bob := env.connect(2)

	_, _ = env.messageSvc.SendDirect(ctx, 1, 2, SendInput{Text: "a"})
	_, _ = env.messageSvc.SendDirect(ctx, 2, 1, SendInput{Text: "b"})
	_, _ = env.messageSvc.SendDirect(ctx, 1, 3, SendInput{Text: "keep"})
	bob.reset()

	n, err := env.messageSvc.ClearDirect(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, env.messages.count())

	var cleared struct {
		ChatType string `json:"chatType"`
		PeerID   string `json:"peerId"`
	}
	bob.last(t, model.EventConversationCleared, &cleared)
	assert.Equal(t, "direct", cleared.ChatType)
	assert.Equal(t, "1", cleared.PeerID)
}

func TestClearGroup_AdminOnly(t *testing.T) {
	env := newTestEnv(t)
	seedUsers(env, 1, 2)
	ctx := context.Background()
	group, err := env.groupSvc.Create(ctx, 1, "team", []int64{2})
	require.NoError(t, err)
	_, _ = env.messageSvc.SendGroup(ctx, 2, group.ID, SendInput{Text: "x"})
	bob := env.connect(2)

	_, err = env.messageSvc.ClearGroup(ctx, 2, group.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrClearNotAdmin))

	n, err := env.messageSvc.ClearGroup(ctx, 1, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{model.EventConversationCleared}, bob.events())
}
