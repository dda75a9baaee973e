package models

// Membership is the single row linking a user to a group.
type Membership struct {
	GroupID  string     `json:"group_id"`
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt int64      `json:"joined_at"`
	AddedBy  string     `json:"added_by"`
}
