package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hive/src/lib"
	"hive/src/models"
	"hive/src/storage"
)

// Moderation lists what a caller may do to one post.
type Moderation struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
	Report bool `json:"report"`
}

// FeedModerationService gates writes to a group feed.
type FeedModerationService struct {
	feed    FeedStore
	roles   *RoleClassifier
	gate    *PermissionGate
	metrics *lib.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewFeedModerationService(feed FeedStore, roles *RoleClassifier, gate *PermissionGate, metrics *lib.Metrics, logger *slog.Logger) *FeedModerationService {
	if metrics == nil {
		metrics = lib.NewMetrics()
	}
	if logger == nil {
		logger = lib.DiscardLogger()
	}
	return &FeedModerationService{
		feed:    feed,
		roles:   roles,
		gate:    gate,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// CanModerate: edit is author only, delete is the author or a moderator,
// and anything not yet approved may be reported.
func (s *FeedModerationService) CanModerate(ctx context.Context, callerID, groupID string, post models.FeedPost) Moderation {
	if callerID == "" {
		return Moderation{}
	}
	return Moderation{
		Edit:   post.AuthorID == callerID,
		Delete: s.gate.CanPerform(ctx, callerID, groupID, models.ActionDeletePost, models.Resource{AuthorID: post.AuthorID}),
		Report: post.Status != models.PostApproved,
	}
}

// ModerationFor loads the post and evaluates CanModerate for caller.
func (s *FeedModerationService) ModerationFor(ctx context.Context, caller models.Caller, postID string) (Moderation, error) {
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return Moderation{}, err
	}
	return s.CanModerate(ctx, caller.UserID, post.GroupID, post), nil
}

// CreatePost is open to members only. The store refuses the insert if the
// membership disappears between the role check and the write.
func (s *FeedModerationService) CreatePost(ctx context.Context, caller models.Caller, groupID string, in PostInput) (models.FeedPost, error) {
	if err := requireCaller(caller); err != nil {
		return models.FeedPost{}, err
	}
	if !s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsMember() {
		return models.FeedPost{}, ErrNotGroupMember
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return models.FeedPost{}, err
	}
	if in.ParentID != "" {
		parent, err := s.loadPost(ctx, in.ParentID)
		if err != nil {
			return models.FeedPost{}, err
		}
		if parent.GroupID != groupID {
			return models.FeedPost{}, ErrParentNotInGroup
		}
		if parent.Status == models.PostDeleted {
			return models.FeedPost{}, ErrPostDeleted
		}
	}

	now := s.now().Unix()
	post := models.FeedPost{
		PostID:    uuid.NewString(),
		GroupID:   groupID,
		Context:   models.FeedContextGroup,
		ParentID:  in.ParentID,
		AuthorID:  caller.UserID,
		Body:      in.Body,
		ImageURL:  in.ImageURL,
		VideoURL:  in.VideoURL,
		LinkURL:   in.LinkURL,
		Status:    models.PostActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.feed.InsertFeedPost(ctx, models.UserActor(caller.UserID), post); err != nil {
		return models.FeedPost{}, s.fail("insert post", translate(err, nil))
	}
	post.InsertedBy = caller.UserID
	s.metrics.Inc("posts_created_total")
	return post, nil
}

func (s *FeedModerationService) EditPost(ctx context.Context, caller models.Caller, postID string, in EditInput) (models.FeedPost, error) {
	if err := requireCaller(caller); err != nil {
		return models.FeedPost{}, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return models.FeedPost{}, err
	}
	if !s.CanModerate(ctx, caller.UserID, post.GroupID, post).Edit {
		return models.FeedPost{}, ErrNotPostAuthor
	}
	if post.Status == models.PostDeleted {
		return models.FeedPost{}, ErrPostDeleted
	}
	in.normalize()
	if err := validateInput(in); err != nil {
		return models.FeedPost{}, err
	}
	now := s.now().Unix()
	if err := s.feed.UpdatePostBody(ctx, postID, in.Body, now); err != nil {
		return models.FeedPost{}, s.fail("edit post", translate(err, ErrPostNotFound))
	}
	post.Body = in.Body
	post.UpdatedAt = now
	return post, nil
}

// DeletePost soft deletes. Deleting a deleted post succeeds without a write.
func (s *FeedModerationService) DeletePost(ctx context.Context, caller models.Caller, postID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.gate.require(ctx, caller.UserID, post.GroupID, models.ActionDeletePost, models.Resource{AuthorID: post.AuthorID}); err != nil {
		return err
	}
	if post.Status == models.PostDeleted {
		return nil
	}
	changed, err := s.feed.UpdatePostStatus(ctx, postID,
		[]models.PostStatus{models.PostActive, models.PostApproved, models.PostReported},
		models.PostDeleted, s.now().Unix())
	if err != nil {
		return s.fail("delete post", translate(err, ErrPostNotFound))
	}
	if changed {
		s.metrics.Inc("posts_deleted_total")
	}
	return nil
}

// ReportPost flags an active post. It reports whether this call made the
// transition; repeated reports leave the post reported and return false.
func (s *FeedModerationService) ReportPost(ctx context.Context, caller models.Caller, postID string) (bool, error) {
	if err := requireCaller(caller); err != nil {
		return false, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return false, err
	}
	if !s.CanModerate(ctx, caller.UserID, post.GroupID, post).Report {
		return false, invalid("this post has been approved by a moderator")
	}
	changed, err := s.feed.UpdatePostStatus(ctx, postID,
		[]models.PostStatus{models.PostActive}, models.PostReported, s.now().Unix())
	if err != nil {
		return false, s.fail("report post", translate(err, ErrPostNotFound))
	}
	if changed {
		s.metrics.Inc("posts_reported_total")
		s.logger.Info("post reported", "post_id", postID, "group_id", post.GroupID, "reporter", caller.UserID)
	}
	return changed, nil
}

// ApprovePost lets a moderator clear a post, which also shields it from
// further reports.
func (s *FeedModerationService) ApprovePost(ctx context.Context, caller models.Caller, postID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if !s.roles.ClassifyRole(ctx, caller.UserID, post.GroupID).IsPrivileged() {
		return ErrNotModerator
	}
	switch post.Status {
	case models.PostApproved:
		return nil
	case models.PostDeleted:
		return ErrPostDeleted
	}
	if _, err := s.feed.UpdatePostStatus(ctx, postID,
		[]models.PostStatus{models.PostActive, models.PostReported}, models.PostApproved, s.now().Unix()); err != nil {
		return s.fail("approve post", translate(err, ErrPostNotFound))
	}
	return nil
}

func (s *FeedModerationService) CurateVideo(ctx context.Context, caller models.Caller, postID string, in CurationInput) (models.FeedPost, error) {
	if err := requireCaller(caller); err != nil {
		return models.FeedPost{}, err
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return models.FeedPost{}, err
	}
	resource := models.Resource{AuthorID: post.AuthorID, HasVideo: post.HasVideo()}
	if !s.gate.CanPerform(ctx, caller.UserID, post.GroupID, models.ActionCurateVideo, resource) {
		if !post.HasVideo() && s.roles.ClassifyRole(ctx, caller.UserID, post.GroupID).IsPrivileged() {
			return models.FeedPost{}, ErrPostHasNoVideo
		}
		return models.FeedPost{}, unauthorized(DenialMessage(models.ActionCurateVideo))
	}
	if post.Status == models.PostDeleted {
		return models.FeedPost{}, ErrPostDeleted
	}
	if err := validateInput(in); err != nil {
		return models.FeedPost{}, err
	}
	now := s.now().Unix()
	if err := s.feed.SetCuratedVideo(ctx, postID, in.Curated, in.Title, now); err != nil {
		return models.FeedPost{}, s.fail("curate video", translate(err, ErrPostNotFound))
	}
	post.CuratedVideo = in.Curated
	post.CuratedTitle = in.Title
	post.UpdatedAt = now
	return post, nil
}

// ListPosts returns top-level posts, or the replies under parentID.
func (s *FeedModerationService) ListPosts(ctx context.Context, caller models.Caller, groupID, parentID string, limit int) ([]models.FeedPost, error) {
	if !s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsMember() {
		return nil, ErrNotGroupMember
	}
	filter := storage.PostFilter{GroupID: groupID, Limit: limit}
	if parentID != "" {
		if uuid.Validate(parentID) != nil {
			return nil, ErrPostNotFound
		}
		filter.ParentID = parentID
	} else {
		filter.TopLevelOnly = true
	}
	posts, err := s.feed.ListPosts(ctx, filter)
	if err != nil {
		return nil, s.fail("list posts", upstream(err))
	}
	return posts, nil
}

func (s *FeedModerationService) ListCuratedVideos(ctx context.Context, caller models.Caller, groupID string, limit int) ([]models.FeedPost, error) {
	if !s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsMember() {
		return nil, ErrNotGroupMember
	}
	posts, err := s.feed.ListPosts(ctx, storage.PostFilter{GroupID: groupID, CuratedOnly: true, Limit: limit})
	if err != nil {
		return nil, s.fail("list curated videos", upstream(err))
	}
	return posts, nil
}

func (s *FeedModerationService) loadPost(ctx context.Context, postID string) (models.FeedPost, error) {
	if uuid.Validate(postID) != nil {
		return models.FeedPost{}, ErrPostNotFound
	}
	post, err := s.feed.GetPost(ctx, postID)
	if err != nil {
		return models.FeedPost{}, s.fail("get post", translate(err, ErrPostNotFound))
	}
	return post, nil
}

func (s *FeedModerationService) fail(op string, err error) error {
	logFailure(s.logger, op, err)
	return err
}
