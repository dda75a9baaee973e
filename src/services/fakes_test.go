package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"hive/src/lib"
	"hive/src/models"
	"hive/src/storage"
)

const testSystemPriv = "19f43f4ef72a9f5f1385d7caec9da7d769e5f7969b2f5b98d6af95f7ce0d4d95"

// memStore is an in-memory stand-in for the Postgres repositories with the
// same conditional-update and uniqueness semantics.
type memStore struct {
	mu       sync.Mutex
	groups   map[string]models.Group
	members  map[string]models.Membership
	requests []models.JoinRequest
	events   map[string]models.GroupEvent
	posts    []models.FeedPost
	actors   []models.Actor

	writes int

	// undo holds the compensations for writes made inside RunInTx.
	inTx bool
	undo []func()

	getGroupErr   error
	membershipErr error
	feedInsertErr error
}

func newMemStore() *memStore {
	return &memStore{
		groups:  make(map[string]models.Group),
		members: make(map[string]models.Membership),
		events:  make(map[string]models.GroupEvent),
	}
}

func memberKey(groupID, userID string) string {
	return groupID + "|" + userID
}

// RunInTx rolls back group and membership inserts made by fn when it fails.
// Writes from outside fn are left alone, as another transaction's would be.
func (m *memStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.inTx = true
	m.undo = nil
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		for i := len(m.undo) - 1; i >= 0; i-- {
			m.undo[i]()
		}
	}
	m.inTx = false
	m.undo = nil
	return err
}

// onRollback must be called with mu held.
func (m *memStore) onRollback(fn func()) {
	if m.inTx {
		m.undo = append(m.undo, fn)
	}
}

func (m *memStore) InsertGroup(_ context.Context, group models.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[group.GroupID]; ok {
		return fmt.Errorf("insert group: %w", storage.ErrConflict)
	}
	m.groups[group.GroupID] = group
	m.onRollback(func() { delete(m.groups, group.GroupID) })
	m.writes++
	return nil
}

func (m *memStore) GetGroup(_ context.Context, groupID string) (models.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getGroupErr != nil {
		return models.Group{}, m.getGroupErr
	}
	group, ok := m.groups[groupID]
	if !ok {
		return models.Group{}, fmt.Errorf("get group: %w", storage.ErrNotFound)
	}
	return group, nil
}

func (m *memStore) UpdateGroupAccess(_ context.Context, groupID string, visibility models.Visibility, inviteCode string, updatedAt int64, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[groupID]
	if !ok || group.IsDeleted() {
		return fmt.Errorf("update group access: %w", storage.ErrNotFound)
	}
	group.Visibility = visibility
	group.InviteCode = inviteCode
	group.UpdatedAt = updatedAt
	group.UpdatedBy = updatedBy
	m.groups[groupID] = group
	m.writes++
	return nil
}

func (m *memStore) SoftDeleteGroup(_ context.Context, groupID string, deletedAt int64, deletedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.groups[groupID]
	if !ok || group.IsDeleted() {
		return fmt.Errorf("soft delete group: %w", storage.ErrNotFound)
	}
	group.Status = models.GroupStatusDeleted
	group.DeletedAt = deletedAt
	group.UpdatedBy = deletedBy
	m.groups[groupID] = group
	m.writes++
	return nil
}

func (m *memStore) InsertMembership(_ context.Context, member models.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey(member.GroupID, member.UserID)
	if _, ok := m.members[key]; ok {
		return fmt.Errorf("insert group member: %w", storage.ErrConflict)
	}
	m.members[key] = member
	m.onRollback(func() { delete(m.members, key) })
	m.writes++
	return nil
}

func (m *memStore) InsertMembershipIfAbsent(_ context.Context, member models.Membership) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey(member.GroupID, member.UserID)
	if _, ok := m.members[key]; ok {
		return false, nil
	}
	m.members[key] = member
	m.onRollback(func() { delete(m.members, key) })
	m.writes++
	return true, nil
}

func (m *memStore) GetMembership(_ context.Context, groupID, userID string) (models.Membership, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.membershipErr != nil {
		return models.Membership{}, false, m.membershipErr
	}
	member, ok := m.members[memberKey(groupID, userID)]
	return member, ok, nil
}

func (m *memStore) RemoveMembership(_ context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey(groupID, userID)
	if _, ok := m.members[key]; !ok {
		return fmt.Errorf("remove group member: %w", storage.ErrNotFound)
	}
	delete(m.members, key)
	m.writes++
	return nil
}

func (m *memStore) ListMembers(_ context.Context, groupID string) ([]models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Membership, 0)
	for _, member := range m.members {
		if member.GroupID == groupID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memStore) GetJoinRequest(_ context.Context, groupID, userID string, statuses ...models.JoinRequestStatus) (models.JoinRequest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.requests) - 1; i >= 0; i-- {
		req := m.requests[i]
		if req.GroupID != groupID || req.UserID != userID {
			continue
		}
		if len(statuses) == 0 || containsStatus(statuses, req.Status) {
			return req, true, nil
		}
	}
	return models.JoinRequest{}, false, nil
}

func containsStatus(statuses []models.JoinRequestStatus, status models.JoinRequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memStore) InsertJoinRequest(_ context.Context, req models.JoinRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.requests {
		if existing.GroupID == req.GroupID && existing.UserID == req.UserID &&
			(existing.Status == models.JoinRequestPending || existing.Status == models.JoinRequestRejected) {
			return fmt.Errorf("insert join request: %w", storage.ErrConflict)
		}
	}
	m.requests = append(m.requests, req)
	m.writes++
	return nil
}

func (m *memStore) UpdateJoinRequestStatus(_ context.Context, requestID string, from, to models.JoinRequestStatus, reviewedAt int64, reviewedBy string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.requests {
		if m.requests[i].RequestID == requestID && m.requests[i].Status == from {
			prev, idx := m.requests[i], i
			m.onRollback(func() { m.requests[idx] = prev })
			m.requests[i].Status = to
			m.requests[i].ReviewedAt = reviewedAt
			m.requests[i].ReviewedBy = reviewedBy
			m.writes++
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteJoinRequest(_ context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.requests {
		if m.requests[i].RequestID == requestID {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			m.writes++
			return nil
		}
	}
	return fmt.Errorf("delete join request: %w", storage.ErrNotFound)
}

func (m *memStore) ListJoinRequests(_ context.Context, groupID string, status models.JoinRequestStatus) ([]models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.JoinRequest, 0)
	for _, req := range m.requests {
		if req.GroupID == groupID && req.Status == status {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memStore) InsertEvent(_ context.Context, event models.GroupEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.EventID] = event
	m.writes++
	return nil
}

func (m *memStore) GetEvent(_ context.Context, eventID string) (models.GroupEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return models.GroupEvent{}, fmt.Errorf("get group event: %w", storage.ErrNotFound)
	}
	return event, nil
}

func (m *memStore) UpdateEvent(_ context.Context, event models.GroupEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.events[event.EventID]
	if !ok {
		return fmt.Errorf("update group event: %w", storage.ErrNotFound)
	}
	if existing.PublishedAt != 0 {
		event.PublishedAt = existing.PublishedAt
	}
	m.events[event.EventID] = event
	m.writes++
	return nil
}

func (m *memStore) UpdateEventStatus(_ context.Context, eventID string, from, to models.EventStatus, at int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok || event.Status != from {
		return false, nil
	}
	event.Status = to
	event.UpdatedAt = at
	if to == models.EventPublished && event.PublishedAt == 0 {
		event.PublishedAt = at
	}
	m.events[eventID] = event
	m.writes++
	return true, nil
}

func (m *memStore) DeleteEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return fmt.Errorf("delete group event: %w", storage.ErrNotFound)
	}
	delete(m.events, eventID)
	m.writes++
	return nil
}

func (m *memStore) ListEvents(_ context.Context, filter storage.EventFilter) ([]models.GroupEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.GroupEvent, 0)
	for _, event := range m.events {
		if filter.GroupID != "" && event.GroupID != filter.GroupID {
			continue
		}
		if !filter.IncludeDrafts && event.Status != models.EventPublished {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt < out[j].StartsAt })
	return out, nil
}

func (m *memStore) InsertFeedPost(_ context.Context, actor models.Actor, post models.FeedPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedInsertErr != nil {
		return m.feedInsertErr
	}
	if !actor.System {
		if _, ok := m.members[memberKey(post.GroupID, post.AuthorID)]; !ok {
			return fmt.Errorf("insert feed post: %w", storage.ErrNotMember)
		}
	}
	post.InsertedBy = actor.ID
	m.posts = append(m.posts, post)
	m.actors = append(m.actors, actor)
	m.writes++
	return nil
}

func (m *memStore) GetPost(_ context.Context, postID string) (models.FeedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, post := range m.posts {
		if post.PostID == postID {
			return post, nil
		}
	}
	return models.FeedPost{}, fmt.Errorf("get feed post: %w", storage.ErrNotFound)
}

func (m *memStore) UpdatePostBody(_ context.Context, postID, body string, updatedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].PostID == postID && m.posts[i].Status != models.PostDeleted {
			m.posts[i].Body = body
			m.posts[i].UpdatedAt = updatedAt
			m.writes++
			return nil
		}
	}
	return fmt.Errorf("update feed post body: %w", storage.ErrNotFound)
}

func (m *memStore) UpdatePostStatus(_ context.Context, postID string, from []models.PostStatus, to models.PostStatus, updatedAt int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].PostID != postID {
			continue
		}
		for _, status := range from {
			if m.posts[i].Status == status {
				m.posts[i].Status = to
				m.posts[i].UpdatedAt = updatedAt
				m.writes++
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

func (m *memStore) SetCuratedVideo(_ context.Context, postID string, curated bool, title string, updatedAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.posts {
		if m.posts[i].PostID == postID && m.posts[i].Status != models.PostDeleted && m.posts[i].VideoURL != "" {
			m.posts[i].CuratedVideo = curated
			m.posts[i].CuratedTitle = title
			m.posts[i].UpdatedAt = updatedAt
			m.writes++
			return nil
		}
	}
	return fmt.Errorf("set curated video: %w", storage.ErrNotFound)
}

func (m *memStore) ListPosts(_ context.Context, filter storage.PostFilter) ([]models.FeedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FeedPost, 0)
	for _, post := range m.posts {
		if post.Status == models.PostDeleted || post.GroupID != filter.GroupID {
			continue
		}
		if filter.CuratedOnly && !post.CuratedVideo {
			continue
		}
		if filter.TopLevelOnly && post.ParentID != "" {
			continue
		}
		if filter.ParentID != "" && post.ParentID != filter.ParentID {
			continue
		}
		out = append(out, post)
	}
	return out, nil
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) postsForEvent(eventID string) []models.FeedPost {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.FeedPost, 0)
	for _, post := range m.posts {
		if post.EventID == eventID {
			out = append(out, post)
		}
	}
	return out
}

func (m *memStore) requestsFor(groupID, userID string) []models.JoinRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.JoinRequest, 0)
	for _, req := range m.requests {
		if req.GroupID == groupID && req.UserID == userID {
			out = append(out, req)
		}
	}
	return out
}

type fixture struct {
	store   *memStore
	metrics *lib.Metrics
	roles   *RoleClassifier
	gate    *PermissionGate
	joins   *JoinPolicyService
	events  *EventPublicationService
	feed    *FeedModerationService
	system  *SystemActor
}

var fixedNow = time.Date(2025, time.March, 14, 18, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	metrics := lib.NewMetrics()
	logger := lib.DiscardLogger()

	system, err := NewSystemActor(testSystemPriv)
	if err != nil {
		t.Fatalf("NewSystemActor returned error: %v", err)
	}
	roles := NewRoleClassifier(store, logger)
	gate := NewPermissionGate(roles, metrics)

	f := &fixture{
		store:   store,
		metrics: metrics,
		roles:   roles,
		gate:    gate,
		joins:   NewJoinPolicyService(store, store, roles, metrics, logger),
		events: NewEventPublicationService(EventPublicationDeps{
			Events:  store,
			Feed:    store,
			Tx:      store,
			Gate:    gate,
			Roles:   roles,
			System:  system,
			Loc:     time.UTC,
			Metrics: metrics,
			Logger:  logger,
		}),
		feed:   NewFeedModerationService(store, roles, gate, metrics, logger),
		system: system,
	}
	clock := func() time.Time { return fixedNow }
	f.joins.now = clock
	f.events.now = clock
	f.feed.now = clock
	return f
}

// seedGroup inserts a group with its owner membership.
func (f *fixture) seedGroup(t *testing.T, groupID, owner string, visibility models.Visibility, inviteCode string) {
	t.Helper()
	ctx := context.Background()
	now := fixedNow.Unix()
	if err := f.store.InsertGroup(ctx, models.Group{
		GroupID:    groupID,
		Name:       groupID,
		Visibility: visibility,
		InviteCode: inviteCode,
		Status:     models.GroupStatusActive,
		CreatedAt:  now,
		CreatedBy:  owner,
		UpdatedAt:  now,
		UpdatedBy:  owner,
	}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	f.seedMember(t, groupID, owner, models.MemberRoleOwner)
}

func (f *fixture) seedMember(t *testing.T, groupID, userID string, role models.MemberRole) {
	t.Helper()
	if err := f.store.InsertMembership(context.Background(), models.Membership{
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		JoinedAt: fixedNow.Unix(),
		AddedBy:  userID,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

func caller(userID string) models.Caller {
	return models.Caller{UserID: userID}
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, kind, err)
	}
}
