package models

// Visibility is a group's join policy.
type Visibility string

const (
	VisibilityOpen    Visibility = "open"
	VisibilityRequest Visibility = "request"
	VisibilityPrivate Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityOpen, VisibilityRequest, VisibilityPrivate:
		return true
	default:
		return false
	}
}

type GroupStatus string

const (
	GroupStatusActive  GroupStatus = "active"
	GroupStatusDeleted GroupStatus = "deleted"
)

// Group is the access-relevant slice of a community group.
type Group struct {
	GroupID    string      `json:"group_id"`
	Name       string      `json:"name"`
	About      string      `json:"about,omitempty"`
	Visibility Visibility  `json:"visibility"`
	InviteCode string      `json:"-"`
	Status     GroupStatus `json:"status"`
	CreatedAt  int64       `json:"created_at"`
	CreatedBy  string      `json:"created_by"`
	UpdatedAt  int64       `json:"updated_at"`
	UpdatedBy  string      `json:"updated_by"`
	DeletedAt  int64       `json:"deleted_at,omitempty"`
}

func (g Group) IsDeleted() bool {
	return g.Status == GroupStatusDeleted
}
