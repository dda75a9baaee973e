package models

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
)

// GroupEvent is a scheduled happening owned by one group.
type GroupEvent struct {
	EventID     string      `json:"event_id"`
	GroupID     string      `json:"group_id"`
	CreatedBy   string      `json:"created_by"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	TypeLabel   string      `json:"type_label,omitempty"`
	StartsAt    int64       `json:"starts_at"`
	EndsAt      int64       `json:"ends_at,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	MoreInfoURL string      `json:"more_info_url,omitempty"`
	Status      EventStatus `json:"status"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
	PublishedAt int64       `json:"published_at,omitempty"`
}
