package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hive/src/models"
)

// ErrNotMember is returned when a user-actor insert is refused because the
// author holds no membership in the target group.
var ErrNotMember = errors.New("author is not a group member")

type PostFilter struct {
	GroupID      string
	ParentID     string
	CuratedOnly  bool
	TopLevelOnly bool
	Limit        int
}

type FeedRepo struct {
	pool *pgxpool.Pool
}

func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

const postColumns = `post_id::text, group_id, context, COALESCE(parent_id::text, ''), author_id, body,
	image_url, video_url, link_url, status, curated_video, curated_title, COALESCE(event_id::text, ''),
	inserted_by, system_signature, created_at, updated_at`

func scanPost(row pgx.Row) (models.FeedPost, error) {
	var post models.FeedPost
	err := row.Scan(&post.PostID, &post.GroupID, &post.Context, &post.ParentID, &post.AuthorID, &post.Body,
		&post.ImageURL, &post.VideoURL, &post.LinkURL, &post.Status, &post.CuratedVideo, &post.CuratedTitle,
		&post.EventID, &post.InsertedBy, &post.SystemSignature, &post.CreatedAt, &post.UpdatedAt)
	return post, err
}

// InsertFeedPost writes a post as actor. A user actor's insert only lands
// when the author is a member of the group; the system actor skips that
// condition and is recorded in inserted_by.
func (r *FeedRepo) InsertFeedPost(ctx context.Context, actor models.Actor, post models.FeedPost) error {
	if post.Context == "" {
		post.Context = models.FeedContextGroup
	}
	post.InsertedBy = actor.ID

	args := []any{
		post.PostID, post.GroupID, post.Context, post.ParentID, post.AuthorID, post.Body,
		post.ImageURL, post.VideoURL, post.LinkURL, post.Status, post.CuratedVideo, post.CuratedTitle,
		post.EventID, post.InsertedBy, post.SystemSignature, post.CreatedAt, post.UpdatedAt,
	}
	const insertHead = `
		INSERT INTO feed_posts (
			post_id, group_id, context, parent_id, author_id, body,
			image_url, video_url, link_url, status, curated_video, curated_title,
			event_id, inserted_by, system_signature, created_at, updated_at
		)
		SELECT $1::uuid, $2::text, $3::text, NULLIF($4::text, '')::uuid, $5::text, $6::text,
			$7::text, $8::text, $9::text, $10::text, $11::boolean, $12::text,
			NULLIF($13::text, '')::uuid, $14::text, $15::text, $16::bigint, $17::bigint
	`

	if actor.System {
		_, err := conn(ctx, r.pool).Exec(ctx, insertHead, args...)
		return wrapErr("insert system feed post", err)
	}

	tag, err := conn(ctx, r.pool).Exec(ctx, insertHead+`
		WHERE EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $2 AND user_id = $5
		)
	`, args...)
	if err != nil {
		return wrapErr("insert feed post", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert feed post: %w", ErrNotMember)
	}
	return nil
}

func (r *FeedRepo) GetPost(ctx context.Context, postID string) (models.FeedPost, error) {
	post, err := scanPost(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+postColumns+`
		FROM feed_posts
		WHERE post_id = $1
	`, postID))
	if err != nil {
		return models.FeedPost{}, wrapErr("get feed post", err)
	}
	return post, nil
}

func (r *FeedRepo) UpdatePostBody(ctx context.Context, postID, body string, updatedAt int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE feed_posts
		SET body = $2, updated_at = $3
		WHERE post_id = $1 AND status <> 'deleted'
	`, postID, body, updatedAt)
	if err != nil {
		return wrapErr("update feed post body", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update feed post body: %w", ErrNotFound)
	}
	return nil
}

// UpdatePostStatus moves the post to status `to` when its current status is
// one of from, reporting whether this call made the change.
func (r *FeedRepo) UpdatePostStatus(ctx context.Context, postID string, from []models.PostStatus, to models.PostStatus, updatedAt int64) (bool, error) {
	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE feed_posts
		SET status = $3, updated_at = $4
		WHERE post_id = $1 AND status = ANY($2::TEXT[])
	`, postID, allowed, to, updatedAt)
	if err != nil {
		return false, wrapErr("update feed post status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *FeedRepo) SetCuratedVideo(ctx context.Context, postID string, curated bool, title string, updatedAt int64) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE feed_posts
		SET curated_video = $2, curated_title = $3, updated_at = $4
		WHERE post_id = $1 AND status <> 'deleted' AND video_url <> ''
	`, postID, curated, title, updatedAt)
	if err != nil {
		return wrapErr("set curated video", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set curated video: %w", ErrNotFound)
	}
	return nil
}

func (r *FeedRepo) ListPosts(ctx context.Context, filter PostFilter) ([]models.FeedPost, error) {
	query, args := buildPostQuery(filter, clampLimit(filter.Limit))
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feed posts: %w", err)
	}
	defer rows.Close()

	posts := make([]models.FeedPost, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feed post row: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed posts: %w", err)
	}
	return posts, nil
}

func buildPostQuery(filter PostFilter, limit int) (string, []any) {
	q := newQueryBuilder(`
		SELECT ` + postColumns + `
		FROM feed_posts
		WHERE status <> 'deleted'
	`)
	if filter.GroupID != "" {
		q.where("group_id = $%d", filter.GroupID)
	}
	if filter.ParentID != "" {
		q.where("parent_id = $%d::uuid", filter.ParentID)
	}
	if filter.CuratedOnly {
		q.where("curated_video = $%d", true)
	}
	if filter.TopLevelOnly {
		q.tail("AND parent_id IS NULL")
	}
	q.tail("ORDER BY created_at DESC, post_id DESC")
	q.limit(limit)
	return q.String(), q.args
}
