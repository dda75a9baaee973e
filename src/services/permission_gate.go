package services

import (
	"context"

	"hive/src/lib"
	"hive/src/models"
)

// Allowed is the fixed permission table. Anonymous callers are always denied.
func Allowed(role models.Role, callerID string, action models.Action, resource models.Resource) bool {
	if callerID == "" {
		return false
	}
	switch action {
	case models.ActionDeletePost:
		return resource.AuthorID == callerID || role.IsPrivileged()
	case models.ActionCreateEvent, models.ActionUpdateEvent, models.ActionPublishEvent, models.ActionDeleteEvent:
		return role.IsPrivileged()
	case models.ActionCurateVideo:
		return role.IsPrivileged() && resource.HasVideo
	default:
		return false
	}
}

var denialMessages = map[models.Action]string{
	models.ActionDeletePost:   "only the author or a group moderator can delete this post",
	models.ActionCreateEvent:  "only group moderators can create events",
	models.ActionUpdateEvent:  "only group moderators can edit events",
	models.ActionPublishEvent: "only group moderators can publish events",
	models.ActionDeleteEvent:  "only group moderators can delete events",
	models.ActionCurateVideo:  "only group moderators can curate videos",
}

// DenialMessage is the stable user-facing text for a denied action.
func DenialMessage(action models.Action) string {
	if msg, ok := denialMessages[action]; ok {
		return msg
	}
	return "not allowed"
}

// PermissionGate answers "may this caller perform this action here".
type PermissionGate struct {
	roles   *RoleClassifier
	metrics *lib.Metrics
}

func NewPermissionGate(roles *RoleClassifier, metrics *lib.Metrics) *PermissionGate {
	if metrics == nil {
		metrics = lib.NewMetrics()
	}
	return &PermissionGate{roles: roles, metrics: metrics}
}

func (g *PermissionGate) CanPerform(ctx context.Context, callerID, groupID string, action models.Action, resource models.Resource) bool {
	if callerID == "" {
		g.metrics.IncLabeled("permission_denied_total", string(action))
		return false
	}
	role := g.roles.ClassifyRole(ctx, callerID, groupID)
	ok := Allowed(role, callerID, action, resource)
	if !ok {
		g.metrics.IncLabeled("permission_denied_total", string(action))
	}
	return ok
}

// require turns a denied check into an Unauthorized failure.
func (g *PermissionGate) require(ctx context.Context, callerID, groupID string, action models.Action, resource models.Resource) error {
	if !g.CanPerform(ctx, callerID, groupID, action, resource) {
		return unauthorized(DenialMessage(action))
	}
	return nil
}
