package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"hive/src/lib"
	"hive/src/models"
)

// RoleClassifier derives a caller's effective role in a group from the
// group's creator and the caller's membership row. Results are not cached.
type RoleClassifier struct {
	groups GroupStore
	logger *slog.Logger
}

func NewRoleClassifier(groups GroupStore, logger *slog.Logger) *RoleClassifier {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &RoleClassifier{groups: groups, logger: logger}
}

// ClassifyRole never fails: any lookup error yields RoleNone.
func (c *RoleClassifier) ClassifyRole(ctx context.Context, callerID, groupID string) models.Role {
	if callerID == "" || groupID == "" {
		return models.RoleNone
	}

	var (
		group    models.Group
		member   models.Membership
		isMember bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		group, err = c.groups.GetGroup(gctx, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		member, isMember, err = c.groups.GetMembership(gctx, groupID, callerID)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.Warn("role lookup failed", "group_id", groupID, "caller", callerID, "error", err)
		return models.RoleNone
	}

	return classify(group, member, isMember, callerID)
}

func classify(group models.Group, member models.Membership, isMember bool, callerID string) models.Role {
	if group.IsDeleted() {
		return models.RoleNone
	}
	if group.CreatedBy == callerID {
		return models.RoleOwner
	}
	if !isMember {
		return models.RoleNone
	}
	return models.RoleFromMembership(member.Role)
}
