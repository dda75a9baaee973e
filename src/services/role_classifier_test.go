package services

import (
	"context"
	"errors"
	"testing"

	"hive/src/models"
)

func TestClassifyRole(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(t, "g-1", "owner-1", models.VisibilityRequest, "")
	f.seedMember(t, "g-1", "mod-1", models.MemberRoleModerator)
	f.seedMember(t, "g-1", "admin-1", models.MemberRoleAdmin)
	f.seedMember(t, "g-1", "member-1", models.MemberRoleMember)

	tests := []struct {
		name     string
		callerID string
		groupID  string
		want     models.Role
	}{
		{name: "creator is owner", callerID: "owner-1", groupID: "g-1", want: models.RoleOwner},
		{name: "moderator membership", callerID: "mod-1", groupID: "g-1", want: models.RoleModerator},
		{name: "admin membership maps to moderator", callerID: "admin-1", groupID: "g-1", want: models.RoleModerator},
		{name: "plain membership", callerID: "member-1", groupID: "g-1", want: models.RoleMember},
		{name: "no membership", callerID: "stranger", groupID: "g-1", want: models.RoleNone},
		{name: "anonymous caller", callerID: "", groupID: "g-1", want: models.RoleNone},
		{name: "unknown group", callerID: "owner-1", groupID: "missing", want: models.RoleNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := f.roles.ClassifyRole(context.Background(), tc.callerID, tc.groupID)
			if got != tc.want {
				t.Fatalf("ClassifyRole(%q, %q) = %s, want %s", tc.callerID, tc.groupID, got, tc.want)
			}
		})
	}
}

func TestClassifyRoleCreatorWinsOverStoredRole(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(t, "g-1", "owner-1", models.VisibilityOpen, "")

	f.store.members[memberKey("g-1", "owner-1")] = models.Membership{GroupID: "g-1", UserID: "owner-1", Role: models.MemberRoleMember}
	if got := f.roles.ClassifyRole(context.Background(), "owner-1", "g-1"); got != models.RoleOwner {
		t.Fatalf("ClassifyRole = %s, want owner", got)
	}
}

func TestClassifyRoleFailsClosedOnLookupError(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(t, "g-1", "owner-1", models.VisibilityOpen, "")
	f.seedMember(t, "g-1", "mod-1", models.MemberRoleModerator)

	f.store.membershipErr = errors.New("connection reset")
	if got := f.roles.ClassifyRole(context.Background(), "mod-1", "g-1"); got != models.RoleNone {
		t.Fatalf("ClassifyRole with membership error = %s, want none", got)
	}

	f.store.membershipErr = nil
	f.store.getGroupErr = errors.New("connection reset")
	if got := f.roles.ClassifyRole(context.Background(), "owner-1", "g-1"); got != models.RoleNone {
		t.Fatalf("ClassifyRole with group error = %s, want none", got)
	}
}

func TestClassifyRoleDeletedGroup(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(t, "g-1", "owner-1", models.VisibilityOpen, "")
	if err := f.store.SoftDeleteGroup(context.Background(), "g-1", 1, "owner-1"); err != nil {
		t.Fatalf("SoftDeleteGroup returned error: %v", err)
	}
	if got := f.roles.ClassifyRole(context.Background(), "owner-1", "g-1"); got != models.RoleNone {
		t.Fatalf("ClassifyRole on deleted group = %s, want none", got)
	}
}
