package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hive/src/models"
)

// GroupRepo is the membership store adapter: groups, memberships and join
// requests. It is the only place membership state is written.
type GroupRepo struct {
	pool *pgxpool.Pool
}

func NewGroupRepo(pool *pgxpool.Pool) *GroupRepo {
	return &GroupRepo{pool: pool}
}

const groupColumns = `group_id, name, about, visibility, invite_code, status,
	created_at, created_by, updated_at, updated_by, deleted_at`

func scanGroup(row pgx.Row) (models.Group, error) {
	var group models.Group
	err := row.Scan(&group.GroupID, &group.Name, &group.About, &group.Visibility, &group.InviteCode,
		&group.Status, &group.CreatedAt, &group.CreatedBy, &group.UpdatedAt, &group.UpdatedBy, &group.DeletedAt)
	return group, err
}

func (r *GroupRepo) InsertGroup(ctx context.Context, group models.Group) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, group.GroupID, group.Name, group.About, group.Visibility, group.InviteCode, group.Status,
		group.CreatedAt, group.CreatedBy, group.UpdatedAt, group.UpdatedBy, group.DeletedAt)
	return wrapErr("insert group", err)
}

func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	group, err := scanGroup(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE group_id = $1
	`, groupID))
	if err != nil {
		return models.Group{}, wrapErr("get group", err)
	}
	return group, nil
}

func (r *GroupRepo) UpdateGroupAccess(ctx context.Context, groupID string, visibility models.Visibility, inviteCode string, updatedAt int64, updatedBy string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE groups
		SET visibility = $2,
			invite_code = $3,
			updated_at = $4,
			updated_by = $5
		WHERE group_id = $1 AND status = 'active'
	`, groupID, visibility, inviteCode, updatedAt, updatedBy)
	if err != nil {
		return wrapErr("update group access", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update group access: %w", ErrNotFound)
	}
	return nil
}

// SoftDeleteGroup marks the group deleted; rows are never removed.
func (r *GroupRepo) SoftDeleteGroup(ctx context.Context, groupID string, deletedAt int64, deletedBy string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE groups
		SET status = 'deleted',
			deleted_at = $2,
			updated_at = $2,
			updated_by = $3
		WHERE group_id = $1 AND status = 'active'
	`, groupID, deletedAt, deletedBy)
	if err != nil {
		return wrapErr("soft delete group", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("soft delete group: %w", ErrNotFound)
	}
	return nil
}

// InsertMembership fails with ErrConflict when the (group, user) row exists.
func (r *GroupRepo) InsertMembership(ctx context.Context, member models.Membership) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at, added_by)
		VALUES ($1, $2, $3, $4, $5)
	`, member.GroupID, member.UserID, member.Role, member.JoinedAt, member.AddedBy)
	return wrapErr("insert group member", err)
}

// InsertMembershipIfAbsent reports whether a row was written. An existing
// (group, user) row leaves the transaction usable, unlike InsertMembership.
func (r *GroupRepo) InsertMembershipIfAbsent(ctx context.Context, member models.Membership) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO group_members (group_id, user_id, role, joined_at, added_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`, member.GroupID, member.UserID, member.Role, member.JoinedAt, member.AddedBy)
	if err != nil {
		return false, wrapErr("insert group member", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GroupRepo) GetMembership(ctx context.Context, groupID, userID string) (models.Membership, bool, error) {
	var member models.Membership
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT group_id, user_id, role, joined_at, added_by
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID).Scan(&member.GroupID, &member.UserID, &member.Role, &member.JoinedAt, &member.AddedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Membership{}, false, nil
		}
		return models.Membership{}, false, fmt.Errorf("scan group member: %w", err)
	}
	return member, true, nil
}

func (r *GroupRepo) RemoveMembership(ctx context.Context, groupID, userID string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM group_members WHERE group_id = $1 AND user_id = $2
	`, groupID, userID)
	if err != nil {
		return wrapErr("remove group member", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("remove group member: %w", ErrNotFound)
	}
	return nil
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID string) ([]models.Membership, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT group_id, user_id, role, joined_at, added_by
		FROM group_members
		WHERE group_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	members := make([]models.Membership, 0)
	for rows.Next() {
		var member models.Membership
		if err := rows.Scan(&member.GroupID, &member.UserID, &member.Role, &member.JoinedAt, &member.AddedBy); err != nil {
			return nil, fmt.Errorf("scan group member row: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return members, nil
}

const joinRequestColumns = `request_id::text, group_id, user_id, status, created_at, reviewed_at, reviewed_by`

func scanJoinRequest(row pgx.Row) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := row.Scan(&req.RequestID, &req.GroupID, &req.UserID, &req.Status, &req.CreatedAt, &req.ReviewedAt, &req.ReviewedBy)
	return req, err
}

// GetJoinRequest returns the newest request for the pair whose status is one
// of statuses (any status when none are given).
func (r *GroupRepo) GetJoinRequest(ctx context.Context, groupID, userID string, statuses ...models.JoinRequestStatus) (models.JoinRequest, bool, error) {
	wanted := make([]string, 0, len(statuses))
	for _, status := range statuses {
		wanted = append(wanted, string(status))
	}

	req, err := scanJoinRequest(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+joinRequestColumns+`
		FROM group_join_requests
		WHERE group_id = $1
		  AND user_id = $2
		  AND (cardinality($3::TEXT[]) = 0 OR status = ANY($3::TEXT[]))
		ORDER BY created_at DESC
		LIMIT 1
	`, groupID, userID, wanted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.JoinRequest{}, false, nil
		}
		return models.JoinRequest{}, false, fmt.Errorf("scan join request: %w", err)
	}
	return req, true, nil
}

// InsertJoinRequest fails with ErrConflict while an open request exists.
func (r *GroupRepo) InsertJoinRequest(ctx context.Context, req models.JoinRequest) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO group_join_requests (request_id, group_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, req.RequestID, req.GroupID, req.UserID, req.Status, req.CreatedAt)
	return wrapErr("insert join request", err)
}

// UpdateJoinRequestStatus moves a request from one status to another and
// reports whether this call performed the transition.
func (r *GroupRepo) UpdateJoinRequestStatus(ctx context.Context, requestID string, from, to models.JoinRequestStatus, reviewedAt int64, reviewedBy string) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE group_join_requests
		SET status = $3,
			reviewed_at = $4,
			reviewed_by = $5
		WHERE request_id = $1 AND status = $2
	`, requestID, from, to, reviewedAt, reviewedBy)
	if err != nil {
		return false, wrapErr("update join request status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GroupRepo) DeleteJoinRequest(ctx context.Context, requestID string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM group_join_requests WHERE request_id = $1
	`, requestID)
	if err != nil {
		return wrapErr("delete join request", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete join request: %w", ErrNotFound)
	}
	return nil
}

func (r *GroupRepo) ListJoinRequests(ctx context.Context, groupID string, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+joinRequestColumns+`
		FROM group_join_requests
		WHERE group_id = $1 AND status = $2
		ORDER BY created_at ASC
	`, groupID, status)
	if err != nil {
		return nil, fmt.Errorf("query join requests: %w", err)
	}
	defer rows.Close()

	requests := make([]models.JoinRequest, 0)
	for rows.Next() {
		req, err := scanJoinRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan join request row: %w", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate join requests: %w", err)
	}
	return requests, nil
}
