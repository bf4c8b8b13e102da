package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sudooom.im.chat/internal/model"
)

// GroupRepository 群组数据访问
type GroupRepository struct {
	db *pgxpool.Pool
}

// NewGroupRepository 创建群组仓库
func NewGroupRepository(db *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create 创建群组及其成员
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO groups (id, name, admin_id, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query, group.ID, group.Name, group.AdminID).
			Scan(&group.CreatedAt, &group.UpdatedAt)
		if err != nil {
			return err
		}
		return insertMembers(ctx, tx, group.ID, group.Members)
	})
}

// GetByID 通过 ID 获取群组，成员按加入顺序返回
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	query := `SELECT id, name, admin_id, created_at, updated_at FROM groups WHERE id = $1`
	group := &model.Group{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.Name,
		&group.AdminID,
		&group.CreatedAt,
		&group.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	members, err := r.members(ctx, id)
	if err != nil {
		return nil, err
	}
	group.Members = members
	return group, nil
}

// ListByMember 获取用户所在的全部群组，按最近更新时间倒序
func (r *GroupRepository) ListByMember(ctx context.Context, userID int64) ([]*model.Group, error) {
	query := `
		SELECT g.id, g.name, g.admin_id, g.created_at, g.updated_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.updated_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	var groups []*model.Group
	for rows.Next() {
		group := &model.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.AdminID, &group.CreatedAt, &group.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, group)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, group := range groups {
		members, err := r.members(ctx, group.ID)
		if err != nil {
			return nil, err
		}
		group.Members = members
	}
	return groups, nil
}

// UpdateMembership 在同一事务内锁定群组行、读取最新成员并执行 apply
// apply 修改管理员与成员列表，返回错误时整个事务回滚；成员为空时删除群组
// 返回写入后的群组，删除时 Members 为空
func (r *GroupRepository) UpdateMembership(ctx context.Context, id int64, apply func(group *model.Group) error) (*model.Group, error) {
	var result *model.Group
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		query := `SELECT id, name, admin_id, created_at, updated_at FROM groups WHERE id = $1 FOR UPDATE`
		group := &model.Group{}
		err := tx.QueryRow(ctx, query, id).Scan(
			&group.ID,
			&group.Name,
			&group.AdminID,
			&group.CreatedAt,
			&group.UpdatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrGroupNotFound
			}
			return err
		}

		members, err := queryMembers(ctx, tx, id)
		if err != nil {
			return err
		}
		group.Members = members

		if err := apply(group); err != nil {
			return err
		}

		if len(group.Members) == 0 {
			// 成员随外键级联删除
			if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id); err != nil {
				return err
			}
			result = group
			return nil
		}

		err = tx.QueryRow(ctx,
			`UPDATE groups SET admin_id = $2, updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
			id, group.AdminID,
		).Scan(&group.UpdatedAt)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1`, id); err != nil {
			return err
		}
		if err := insertMembers(ctx, tx, id, group.Members); err != nil {
			return err
		}
		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *GroupRepository) members(ctx context.Context, groupID int64) (model.IDList, error) {
	return queryMembers(ctx, r.db, groupID)
}

func queryMembers(ctx context.Context, q querier, groupID int64) (model.IDList, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY position ASC`
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	return model.IDList(ids), nil
}

func insertMembers(ctx context.Context, tx pgx.Tx, groupID int64, members []int64) error {
	rows := make([][]any, len(members))
	for i, userID := range members {
		rows[i] = []any{groupID, userID, i}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"group_members"},
		[]string{"group_id", "user_id", "position"},
		pgx.CopyFromRows(rows),
	)
	return err
}
