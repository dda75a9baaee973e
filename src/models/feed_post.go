package models

type PostStatus string

const (
	PostActive   PostStatus = "active"
	PostApproved PostStatus = "approved"
	PostReported PostStatus = "reported"
	PostDeleted  PostStatus = "deleted"
)

const FeedContextGroup = "group_feed"

// FeedPost is a top-level post or, with ParentID set, a reply.
type FeedPost struct {
	PostID          string     `json:"post_id"`
	GroupID         string     `json:"group_id"`
	Context         string     `json:"context"`
	ParentID        string     `json:"parent_id,omitempty"`
	AuthorID        string     `json:"author_id"`
	Body            string     `json:"body"`
	ImageURL        string     `json:"image_url,omitempty"`
	VideoURL        string     `json:"video_url,omitempty"`
	LinkURL         string     `json:"link_url,omitempty"`
	Status          PostStatus `json:"status"`
	CuratedVideo    bool       `json:"curated_video"`
	CuratedTitle    string     `json:"curated_title,omitempty"`
	EventID         string     `json:"event_id,omitempty"`
	InsertedBy      string     `json:"inserted_by"`
	SystemSignature string     `json:"system_signature,omitempty"`
	CreatedAt       int64      `json:"created_at"`
	UpdatedAt       int64      `json:"updated_at"`
}

func (p FeedPost) HasVideo() bool {
	return p.VideoURL != ""
}
