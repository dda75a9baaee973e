package models

// Action is a privileged operation on group content.
type Action string

const (
	ActionDeletePost   Action = "delete_post"
	ActionCreateEvent  Action = "create_event"
	ActionUpdateEvent  Action = "update_event"
	ActionPublishEvent Action = "publish_event"
	ActionDeleteEvent  Action = "delete_event"
	ActionCurateVideo  Action = "curate_video"
)

// Resource carries the facts about the target an action needs.
type Resource struct {
	AuthorID string
	HasVideo bool
}
