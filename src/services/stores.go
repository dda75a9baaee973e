package services

import (
	"context"

	"hive/src/models"
	"hive/src/storage"
)

// GroupStore is the membership store: groups, memberships and join requests.
type GroupStore interface {
	InsertGroup(ctx context.Context, group models.Group) error
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	UpdateGroupAccess(ctx context.Context, groupID string, visibility models.Visibility, inviteCode string, updatedAt int64, updatedBy string) error
	SoftDeleteGroup(ctx context.Context, groupID string, deletedAt int64, deletedBy string) error

	InsertMembership(ctx context.Context, member models.Membership) error
	InsertMembershipIfAbsent(ctx context.Context, member models.Membership) (bool, error)
	GetMembership(ctx context.Context, groupID, userID string) (models.Membership, bool, error)
	RemoveMembership(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string) ([]models.Membership, error)

	GetJoinRequest(ctx context.Context, groupID, userID string, statuses ...models.JoinRequestStatus) (models.JoinRequest, bool, error)
	InsertJoinRequest(ctx context.Context, req models.JoinRequest) error
	UpdateJoinRequestStatus(ctx context.Context, requestID string, from, to models.JoinRequestStatus, reviewedAt int64, reviewedBy string) (bool, error)
	DeleteJoinRequest(ctx context.Context, requestID string) error
	ListJoinRequests(ctx context.Context, groupID string, status models.JoinRequestStatus) ([]models.JoinRequest, error)
}

type EventStore interface {
	InsertEvent(ctx context.Context, event models.GroupEvent) error
	GetEvent(ctx context.Context, eventID string) (models.GroupEvent, error)
	UpdateEvent(ctx context.Context, event models.GroupEvent) error
	UpdateEventStatus(ctx context.Context, eventID string, from, to models.EventStatus, at int64) (bool, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListEvents(ctx context.Context, filter storage.EventFilter) ([]models.GroupEvent, error)
}

type FeedStore interface {
	InsertFeedPost(ctx context.Context, actor models.Actor, post models.FeedPost) error
	GetPost(ctx context.Context, postID string) (models.FeedPost, error)
	UpdatePostBody(ctx context.Context, postID, body string, updatedAt int64) error
	UpdatePostStatus(ctx context.Context, postID string, from []models.PostStatus, to models.PostStatus, updatedAt int64) (bool, error)
	SetCuratedVideo(ctx context.Context, postID string, curated bool, title string, updatedAt int64) error
	ListPosts(ctx context.Context, filter storage.PostFilter) ([]models.FeedPost, error)
}

// TxRunner runs fn as one unit of work.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var (
	_ GroupStore = (*storage.GroupRepo)(nil)
	_ EventStore = (*storage.EventsRepo)(nil)
	_ FeedStore  = (*storage.FeedRepo)(nil)
	_ TxRunner   = (*storage.TxManager)(nil)
)
