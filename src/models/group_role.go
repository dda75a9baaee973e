package models

import "strings"

// MemberRole is the value stored on a membership row.
type MemberRole string

const (
	MemberRoleOwner     MemberRole = "owner"
	MemberRoleModerator MemberRole = "moderator"
	MemberRoleAdmin     MemberRole = "admin"
	MemberRoleMember    MemberRole = "member"
)

// Role is a caller's effective standing within one group.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
	RoleNone      Role = "none"
)

// IsPrivileged reports whether the role may moderate the group.
func (r Role) IsPrivileged() bool {
	return r == RoleOwner || r == RoleModerator
}

func (r Role) IsMember() bool {
	return r == RoleOwner || r == RoleModerator || r == RoleMember
}

// RoleFromMembership maps a stored membership role onto an effective role.
// Ownership is decided by the group's creator, not by this column.
func RoleFromMembership(stored MemberRole) Role {
	switch MemberRole(strings.TrimSpace(strings.ToLower(string(stored)))) {
	case MemberRoleModerator, MemberRoleAdmin:
		return RoleModerator
	default:
		return RoleMember
	}
}
