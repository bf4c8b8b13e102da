package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.chat/internal/model"
)

const messageColumns = `id, sender_id, receiver_id, group_id, chat_type, text, image,
	seen, seen_at, is_edited, edited_at, is_deleted, deleted_at, created_at, updated_at`

// MessageRepository 消息数据访问
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository 创建消息仓库
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	msg := &model.Message{}
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.GroupID,
		&msg.ChatType,
		&msg.Text,
		&msg.Image,
		&msg.Seen,
		&msg.SeenAt,
		&msg.IsEdited,
		&msg.EditedAt,
		&msg.IsDeleted,
		&msg.DeletedAt,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// Create 保存消息
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, group_id, chat_type, text, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.GroupID,
		msg.ChatType,
		msg.Text,
		msg.Image,
		msg.CreatedAt,
	)
	return err
}

// GetByID 通过 ID 获取消息
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

// Update 写回可变字段（编辑、软删除），最后写入者生效
func (r *MessageRepository) Update(ctx context.Context, msg *model.Message) error {
	query := `
		UPDATE messages
		SET text = $2, image = $3, is_edited = $4, edited_at = $5, is_deleted = $6, deleted_at = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.Text,
		msg.Image,
		msg.IsEdited,
		msg.EditedAt,
		msg.IsDeleted,
		msg.DeletedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// MarkSeen 将 peer 发给 viewer 的未读直聊消息置为已读，返回更新条数
func (r *MessageRepository) MarkSeen(ctx context.Context, peerID, viewerID int64) (int64, error) {
	query := `
		UPDATE messages SET seen = TRUE, seen_at = NOW(), updated_at = NOW()
		WHERE chat_type = 'direct' AND sender_id = $1 AND receiver_id = $2 AND seen = FALSE
	`
	result, err := r.db.Exec(ctx, query, peerID, viewerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// ListDirect 获取两人之间的直聊消息，按创建时间升序
func (r *MessageRepository) ListDirect(ctx context.Context, userA, userB int64) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE chat_type = 'direct'
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, query, userA, userB)
}

// ListGroup 获取群聊消息，按创建时间升序
func (r *MessageRepository) ListGroup(ctx context.Context, groupID int64) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE chat_type = 'group' AND group_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, query, groupID)
}

// ListInvolving 获取用户参与的全部直聊消息（双向），用于侧边栏摘要
func (r *MessageRepository) ListInvolving(ctx context.Context, userID int64) ([]*model.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE chat_type = 'direct' AND (sender_id = $1 OR receiver_id = $1)
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, userID)
}

// DeleteDirect 物理删除两人之间的全部直聊消息
func (r *MessageRepository) DeleteDirect(ctx context.Context, userA, userB int64) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE chat_type = 'direct'
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
	`
	result, err := r.db.Exec(ctx, query, userA, userB)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// DeleteByGroup 物理删除群聊全部消息
func (r *MessageRepository) DeleteByGroup(ctx context.Context, groupID int64) (int64, error) {
	query := `DELETE FROM messages WHERE chat_type = 'group' AND group_id = $1`
	result, err := r.db.Exec(ctx, query, groupID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *MessageRepository) list(ctx context.Context, query string, args ...any) ([]*model.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
