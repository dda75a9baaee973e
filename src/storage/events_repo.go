package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hive/src/models"
)

type EventFilter struct {
	GroupID       string
	Status        models.EventStatus
	StartsAfter   *int64
	Limit         int
	IncludeDrafts bool
}

type EventsRepo struct {
	pool *pgxpool.Pool
}

func NewEventsRepo(pool *pgxpool.Pool) *EventsRepo {
	return &EventsRepo{pool: pool}
}

const eventColumns = `event_id::text, group_id, created_by, title, description, type_label,
	starts_at, ends_at, image_url, more_info_url, status, created_at, updated_at, published_at`

func scanEvent(row pgx.Row) (models.GroupEvent, error) {
	var event models.GroupEvent
	err := row.Scan(&event.EventID, &event.GroupID, &event.CreatedBy, &event.Title, &event.Description,
		&event.TypeLabel, &event.StartsAt, &event.EndsAt, &event.ImageURL, &event.MoreInfoURL,
		&event.Status, &event.CreatedAt, &event.UpdatedAt, &event.PublishedAt)
	return event, err
}

func (r *EventsRepo) InsertEvent(ctx context.Context, event models.GroupEvent) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO group_events (
			event_id, group_id, created_by, title, description, type_label,
			starts_at, ends_at, image_url, more_info_url, status, created_at, updated_at, published_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14
		)
	`, event.EventID, event.GroupID, event.CreatedBy, event.Title, event.Description, event.TypeLabel,
		event.StartsAt, event.EndsAt, event.ImageURL, event.MoreInfoURL, event.Status,
		event.CreatedAt, event.UpdatedAt, event.PublishedAt)
	return wrapErr("insert group event", err)
}

func (r *EventsRepo) GetEvent(ctx context.Context, eventID string) (models.GroupEvent, error) {
	event, err := scanEvent(conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+eventColumns+`
		FROM group_events
		WHERE event_id = $1
	`, eventID))
	if err != nil {
		return models.GroupEvent{}, wrapErr("get group event", err)
	}
	return event, nil
}

// UpdateEvent rewrites the descriptive fields and status. published_at is
// kept once set.
func (r *EventsRepo) UpdateEvent(ctx context.Context, event models.GroupEvent) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE group_events
		SET title = $2,
			description = $3,
			type_label = $4,
			starts_at = $5,
			ends_at = $6,
			image_url = $7,
			more_info_url = $8,
			status = $9,
			updated_at = $10,
			published_at = CASE WHEN published_at = 0 THEN $11 ELSE published_at END
		WHERE event_id = $1
	`, event.EventID, event.Title, event.Description, event.TypeLabel, event.StartsAt, event.EndsAt,
		event.ImageURL, event.MoreInfoURL, event.Status, event.UpdatedAt, event.PublishedAt)
	if err != nil {
		return wrapErr("update group event", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update group event: %w", ErrNotFound)
	}
	return nil
}

// UpdateEventStatus performs a conditional from -> to transition and reports
// whether this call made it.
func (r *EventsRepo) UpdateEventStatus(ctx context.Context, eventID string, from, to models.EventStatus, at int64) (bool, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE group_events
		SET status = $3,
			updated_at = $4,
			published_at = CASE WHEN $3 = 'published' AND published_at = 0 THEN $4 ELSE published_at END
		WHERE event_id = $1 AND status = $2
	`, eventID, from, to, at)
	if err != nil {
		return false, wrapErr("update group event status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *EventsRepo) DeleteEvent(ctx context.Context, eventID string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM group_events WHERE event_id = $1`, eventID)
	if err != nil {
		return wrapErr("delete group event", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete group event: %w", ErrNotFound)
	}
	return nil
}

func (r *EventsRepo) ListEvents(ctx context.Context, filter EventFilter) ([]models.GroupEvent, error) {
	limit := clampLimit(filter.Limit)

	query, args := buildEventQuery(filter, limit)
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group events: %w", err)
	}
	defer rows.Close()

	events := make([]models.GroupEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group events: %w", err)
	}
	return events, nil
}

func buildEventQuery(filter EventFilter, limit int) (string, []any) {
	q := newQueryBuilder(`
		SELECT ` + eventColumns + `
		FROM group_events
		WHERE 1=1
	`)
	if filter.GroupID != "" {
		q.where("group_id = $%d", filter.GroupID)
	}
	switch {
	case filter.Status != "":
		q.where("status = $%d", filter.Status)
	case !filter.IncludeDrafts:
		q.where("status = $%d", models.EventPublished)
	}
	if filter.StartsAfter != nil {
		q.where("starts_at >= $%d", *filter.StartsAfter)
	}
	q.tail("ORDER BY starts_at ASC, event_id ASC")
	q.limit(limit)
	return q.String(), q.args
}
