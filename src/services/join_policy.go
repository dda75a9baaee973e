package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hive/src/lib"
	"hive/src/models"
	"hive/src/storage"
)

// JoinPolicyService owns group lifecycle and every path into membership:
// open joins, invite codes and reviewed join requests.
type JoinPolicyService struct {
	groups  GroupStore
	tx      TxRunner
	roles   *RoleClassifier
	metrics *lib.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewJoinPolicyService(groups GroupStore, tx TxRunner, roles *RoleClassifier, metrics *lib.Metrics, logger *slog.Logger) *JoinPolicyService {
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	if metrics == nil {
		metrics = lib.NewMetrics()
	}
	return &JoinPolicyService{
		groups:  groups,
		tx:      tx,
		roles:   roles,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ApproveResult reports whether this call made the approval or found it
// already made by a concurrent reviewer.
type ApproveResult struct {
	Membership models.Membership `json:"membership"`
	Applied    bool              `json:"applied"`
}

func (s *JoinPolicyService) CreateGroup(ctx context.Context, caller models.Caller, in GroupInput) (models.Group, error) {
	if err := requireCaller(caller); err != nil {
		return models.Group{}, err
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return models.Group{}, err
	}

	now := s.now().Unix()
	group := models.Group{
		GroupID:    uuid.NewString(),
		Name:       in.Name,
		About:      in.About,
		Visibility: in.Visibility,
		InviteCode: in.InviteCode,
		Status:     models.GroupStatusActive,
		CreatedAt:  now,
		CreatedBy:  caller.UserID,
		UpdatedAt:  now,
		UpdatedBy:  caller.UserID,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.groups.InsertGroup(ctx, group); err != nil {
			return err
		}
		return s.groups.InsertMembership(ctx, models.Membership{
			GroupID:  group.GroupID,
			UserID:   caller.UserID,
			Role:     models.MemberRoleOwner,
			JoinedAt: now,
			AddedBy:  caller.UserID,
		})
	})
	if err != nil {
		return models.Group{}, s.fail("create group", translate(err, nil))
	}
	s.metrics.Inc("groups_created_total")
	return group, nil
}

func (s *JoinPolicyService) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return s.activeGroup(ctx, groupID)
}

func (s *JoinPolicyService) UpdateAccess(ctx context.Context, caller models.Caller, groupID string, in AccessInput) (models.Group, error) {
	if err := s.requireModerator(ctx, caller, groupID); err != nil {
		return models.Group{}, err
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return models.Group{}, err
	}
	if err := s.groups.UpdateGroupAccess(ctx, groupID, in.Visibility, in.InviteCode, s.now().Unix(), caller.UserID); err != nil {
		return models.Group{}, s.fail("update access", translate(err, ErrGroupNotFound))
	}
	return s.activeGroup(ctx, groupID)
}

func (s *JoinPolicyService) DeleteGroup(ctx context.Context, caller models.Caller, groupID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if s.roles.ClassifyRole(ctx, caller.UserID, groupID) != models.RoleOwner {
		return unauthorized("only the group owner can delete the group")
	}
	if err := s.groups.SoftDeleteGroup(ctx, groupID, s.now().Unix(), caller.UserID); err != nil {
		return s.fail("delete group", translate(err, ErrGroupNotFound))
	}
	s.metrics.Inc("groups_deleted_total")
	return nil
}

// RequestToJoin is idempotent while a request is pending. A rejected
// request blocks new ones until a moderator clears it.
func (s *JoinPolicyService) RequestToJoin(ctx context.Context, caller models.Caller, groupID string) (models.JoinState, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	if group.Visibility != models.VisibilityRequest {
		return "", ErrRequestNotAccepted
	}
	isMember, err := s.isMember(ctx, group, caller.UserID)
	if err != nil {
		return "", err
	}
	if isMember {
		return "", ErrAlreadyMember
	}

	existing, found, err := s.groups.GetJoinRequest(ctx, groupID, caller.UserID, models.JoinRequestPending, models.JoinRequestRejected)
	if err != nil {
		return "", s.fail("lookup join request", upstream(err))
	}
	if found {
		if existing.Status == models.JoinRequestRejected {
			return "", ErrJoinRequestRejected
		}
		return models.JoinStatePending, nil
	}

	err = s.groups.InsertJoinRequest(ctx, models.JoinRequest{
		RequestID: uuid.NewString(),
		GroupID:   groupID,
		UserID:    caller.UserID,
		Status:    models.JoinRequestPending,
		CreatedAt: s.now().Unix(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.JoinStatePending, nil
		}
		return "", s.fail("insert join request", upstream(err))
	}
	s.metrics.Inc("join_requests_created_total")
	return models.JoinStatePending, nil
}

// ApproveJoinRequest writes the membership before marking the request
// approved, both inside one transaction.
func (s *JoinPolicyService) ApproveJoinRequest(ctx context.Context, caller models.Caller, groupID, userID string) (ApproveResult, error) {
	if err := s.requireModerator(ctx, caller, groupID); err != nil {
		return ApproveResult{}, err
	}

	var result ApproveResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		req, err := s.pendingRequest(ctx, groupID, userID)
		if err != nil {
			return err
		}

		now := s.now().Unix()
		member := models.Membership{
			GroupID:  groupID,
			UserID:   userID,
			Role:     models.MemberRoleMember,
			JoinedAt: now,
			AddedBy:  caller.UserID,
		}
		inserted, err := s.groups.InsertMembershipIfAbsent(ctx, member)
		if err != nil {
			return upstream(err)
		}
		updated, err := s.groups.UpdateJoinRequestStatus(ctx, req.RequestID, models.JoinRequestPending, models.JoinRequestApproved, now, caller.UserID)
		if err != nil {
			return upstream(err)
		}
		if !updated {
			// Someone decided the request after we read it. Only a racing
			// approval may keep the membership; anything else rolls back.
			current, found, err := s.groups.GetJoinRequest(ctx, groupID, userID)
			if err != nil {
				return upstream(err)
			}
			if !found || current.Status != models.JoinRequestApproved {
				return ErrRequestNotPending
			}
		}
		result = ApproveResult{Membership: member, Applied: inserted && updated}
		return nil
	})
	if err != nil {
		return ApproveResult{}, s.fail("approve join request", err)
	}

	if result.Applied {
		s.metrics.Inc("join_requests_approved_total")
	} else {
		s.metrics.Inc("join_requests_approve_noop_total")
		s.logger.Info("join approval already applied", "group_id", groupID, "user_id", userID, "reviewer", caller.UserID)
	}
	return result, nil
}

func (s *JoinPolicyService) DenyJoinRequest(ctx context.Context, caller models.Caller, groupID, userID string) error {
	if err := s.requireModerator(ctx, caller, groupID); err != nil {
		return err
	}
	req, err := s.pendingRequest(ctx, groupID, userID)
	if err != nil {
		return s.fail("deny join request", err)
	}
	updated, err := s.groups.UpdateJoinRequestStatus(ctx, req.RequestID, models.JoinRequestPending, models.JoinRequestRejected, s.now().Unix(), caller.UserID)
	if err != nil {
		return s.fail("deny join request", upstream(err))
	}
	if updated {
		s.metrics.Inc("join_requests_denied_total")
	}
	return nil
}

// ClearJoinRequest removes a rejected request so the user may ask again.
func (s *JoinPolicyService) ClearJoinRequest(ctx context.Context, caller models.Caller, groupID, userID string) error {
	if err := s.requireModerator(ctx, caller, groupID); err != nil {
		return err
	}
	req, found, err := s.groups.GetJoinRequest(ctx, groupID, userID, models.JoinRequestRejected)
	if err != nil {
		return s.fail("clear join request", upstream(err))
	}
	if !found {
		return ErrJoinRequestNotFound
	}
	if err := s.groups.DeleteJoinRequest(ctx, req.RequestID); err != nil {
		return s.fail("clear join request", translate(err, ErrJoinRequestNotFound))
	}
	return nil
}

func (s *JoinPolicyService) ListJoinRequests(ctx context.Context, caller models.Caller, groupID string) ([]models.JoinRequest, error) {
	if err := s.requireModerator(ctx, caller, groupID); err != nil {
		return nil, err
	}
	requests, err := s.groups.ListJoinRequests(ctx, groupID, models.JoinRequestPending)
	if err != nil {
		return nil, s.fail("list join requests", upstream(err))
	}
	return requests, nil
}

func (s *JoinPolicyService) JoinState(ctx context.Context, caller models.Caller, groupID string) (models.JoinState, error) {
	if err := requireCaller(caller); err != nil {
		return "", err
	}
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return "", err
	}
	isMember, err := s.isMember(ctx, group, caller.UserID)
	if err != nil {
		return "", err
	}
	if isMember {
		return models.JoinStateMember, nil
	}
	req, found, err := s.groups.GetJoinRequest(ctx, groupID, caller.UserID, models.JoinRequestPending, models.JoinRequestRejected)
	if err != nil {
		return "", s.fail("lookup join request", upstream(err))
	}
	if !found {
		return models.JoinStateNotRequested, nil
	}
	if req.Status == models.JoinRequestRejected {
		return models.JoinStateRejected, nil
	}
	return models.JoinStatePending, nil
}

// Join adds the caller directly. Private groups require the exact invite
// code; request groups go through RequestToJoin instead.
func (s *JoinPolicyService) Join(ctx context.Context, caller models.Caller, groupID, inviteCode string) (models.Role, error) {
	if err := requireCaller(caller); err != nil {
		return models.RoleNone, err
	}
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return models.RoleNone, err
	}
	switch group.Visibility {
	case models.VisibilityOpen:
	case models.VisibilityPrivate:
		if !inviteMatches(group.InviteCode, inviteCode) {
			s.metrics.Inc("invite_code_rejected_total")
			return models.RoleNone, ErrInvalidInviteCode
		}
	default:
		return models.RoleNone, ErrJoinNeedsRequest
	}

	err = s.groups.InsertMembership(ctx, models.Membership{
		GroupID:  groupID,
		UserID:   caller.UserID,
		Role:     models.MemberRoleMember,
		JoinedAt: s.now().Unix(),
		AddedBy:  caller.UserID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return models.RoleNone, ErrAlreadyMember
		}
		return models.RoleNone, s.fail("join group", upstream(err))
	}
	s.metrics.Inc("group_joins_total")
	return models.RoleMember, nil
}

func (s *JoinPolicyService) Leave(ctx context.Context, caller models.Caller, groupID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy == caller.UserID {
		return ErrOwnerCannotLeave
	}
	if err := s.groups.RemoveMembership(ctx, groupID, caller.UserID); err != nil {
		return s.fail("leave group", translate(err, &Error{Kind: KindNotFound, Message: "not a member of this group"}))
	}
	return nil
}

// ListMembers is public for open groups and members-only otherwise.
func (s *JoinPolicyService) ListMembers(ctx context.Context, caller models.Caller, groupID string) ([]models.Membership, error) {
	group, err := s.activeGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.Visibility != models.VisibilityOpen {
		if !s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsMember() {
			return nil, ErrNotGroupMember
		}
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, s.fail("list members", upstream(err))
	}
	return members, nil
}

func (s *JoinPolicyService) activeGroup(ctx context.Context, groupID string) (models.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, s.fail("get group", translate(err, ErrGroupNotFound))
	}
	if group.IsDeleted() {
		return models.Group{}, ErrGroupNotFound
	}
	return group, nil
}

func (s *JoinPolicyService) isMember(ctx context.Context, group models.Group, userID string) (bool, error) {
	if group.CreatedBy == userID {
		return true, nil
	}
	_, found, err := s.groups.GetMembership(ctx, group.GroupID, userID)
	if err != nil {
		return false, s.fail("get membership", upstream(err))
	}
	return found, nil
}

// pendingRequest distinguishes a request that was already decided from one
// that never existed.
func (s *JoinPolicyService) pendingRequest(ctx context.Context, groupID, userID string) (models.JoinRequest, error) {
	req, found, err := s.groups.GetJoinRequest(ctx, groupID, userID)
	if err != nil {
		return models.JoinRequest{}, upstream(err)
	}
	if !found {
		return models.JoinRequest{}, ErrJoinRequestNotFound
	}
	switch req.Status {
	case models.JoinRequestPending:
		return req, nil
	case models.JoinRequestApproved:
		return models.JoinRequest{}, ErrAlreadyApproved
	default:
		return models.JoinRequest{}, ErrRequestNotPending
	}
}

func (s *JoinPolicyService) requireModerator(ctx context.Context, caller models.Caller, groupID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsPrivileged() {
		return ErrNotModerator
	}
	return nil
}

// fail logs upstream failures with their cause before they are returned.
func (s *JoinPolicyService) fail(op string, err error) error {
	logFailure(s.logger, op, err)
	return err
}

func inviteMatches(want, got string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func logFailure(logger *slog.Logger, op string, err error) {
	if KindOf(err) == KindUpstreamFailure {
		logger.Error("store operation failed", "op", op, "error", err)
	}
}
