package models

// Caller is the identity resolved for an incoming request.
type Caller struct {
	UserID string `json:"user_id,omitempty"`
}

func (c Caller) Anonymous() bool {
	return c.UserID == ""
}

// Actor is who a store write is performed as. The system actor bypasses
// membership conditions on inserts and must be passed explicitly.
type Actor struct {
	ID     string
	System bool
}

func UserActor(userID string) Actor {
	return Actor{ID: userID}
}
