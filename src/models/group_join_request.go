package models

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest is an ask to join a request-visibility group.
type JoinRequest struct {
	RequestID  string            `json:"request_id"`
	GroupID    string            `json:"group_id"`
	UserID     string            `json:"user_id"`
	Status     JoinRequestStatus `json:"status"`
	CreatedAt  int64             `json:"created_at"`
	ReviewedAt int64             `json:"reviewed_at,omitempty"`
	ReviewedBy string            `json:"reviewed_by,omitempty"`
}

// JoinState is where a user stands with respect to joining one group.
type JoinState string

const (
	JoinStateNotRequested JoinState = "not_requested"
	JoinStatePending      JoinState = "pending"
	JoinStateRejected     JoinState = "rejected"
	JoinStateMember       JoinState = "member"
)
