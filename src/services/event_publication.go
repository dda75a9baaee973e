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

const announcementFailedMessage = "event saved but the feed announcement could not be posted"

// EventPublicationService manages group events. Entering the published
// state posts an announcement to the group feed as the system actor; that
// post is best effort and never rolls the event back.
type EventPublicationService struct {
	events  EventStore
	feed    FeedStore
	tx      TxRunner
	gate    *PermissionGate
	roles   *RoleClassifier
	system  *SystemActor
	loc     *time.Location
	metrics *lib.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type EventPublicationDeps struct {
	Events  EventStore
	Feed    FeedStore
	Tx      TxRunner
	Gate    *PermissionGate
	Roles   *RoleClassifier
	System  *SystemActor
	Loc     *time.Location
	Metrics *lib.Metrics
	Logger  *slog.Logger
}

func NewEventPublicationService(deps EventPublicationDeps) *EventPublicationService {
	s := &EventPublicationService{
		events:  deps.Events,
		feed:    deps.Feed,
		tx:      deps.Tx,
		gate:    deps.Gate,
		roles:   deps.Roles,
		system:  deps.System,
		loc:     deps.Loc,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		now:     time.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.metrics == nil {
		s.metrics = lib.NewMetrics()
	}
	if s.logger == nil {
		s.logger = lib.DiscardLogger()
	}
	return s
}

// PublishResult carries the event and the outcome of its announcement.
// AnnouncementError is set when the event was saved but the post failed.
type PublishResult struct {
	Event             models.GroupEvent `json:"event"`
	AnnouncementID    string            `json:"announcement_id,omitempty"`
	AnnouncementError string            `json:"announcement_error,omitempty"`
}

func (s *EventPublicationService) CreateEvent(ctx context.Context, caller models.Caller, groupID string, in EventInput) (PublishResult, error) {
	if err := requireCaller(caller); err != nil {
		return PublishResult{}, err
	}
	if err := s.gate.require(ctx, caller.UserID, groupID, models.ActionCreateEvent, models.Resource{}); err != nil {
		return PublishResult{}, err
	}
	in.normalize()
	if in.Status == "" {
		in.Status = models.EventDraft
	}
	if err := validateEventInput(in); err != nil {
		return PublishResult{}, err
	}

	now := s.now().Unix()
	event := models.GroupEvent{
		EventID:     uuid.NewString(),
		GroupID:     groupID,
		CreatedBy:   caller.UserID,
		Title:       in.Title,
		Description: in.Description,
		TypeLabel:   in.TypeLabel,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		ImageURL:    in.ImageURL,
		MoreInfoURL: in.MoreInfoURL,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if event.Status == models.EventPublished {
		event.PublishedAt = now
	}
	if err := s.events.InsertEvent(ctx, event); err != nil {
		return PublishResult{}, s.fail("insert event", translate(err, nil))
	}
	s.metrics.Inc("events_created_total")

	result := PublishResult{Event: event}
	if event.Status == models.EventPublished {
		s.announce(ctx, &result)
	}
	return result, nil
}

// UpdateEvent rewrites an event. An update that carries the published
// status announces again, including when the event was already published.
func (s *EventPublicationService) UpdateEvent(ctx context.Context, caller models.Caller, eventID string, in EventInput) (PublishResult, error) {
	if err := requireCaller(caller); err != nil {
		return PublishResult{}, err
	}
	existing, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return PublishResult{}, err
	}
	if err := s.gate.require(ctx, caller.UserID, existing.GroupID, models.ActionUpdateEvent, models.Resource{}); err != nil {
		return PublishResult{}, err
	}
	in.normalize()
	if err := validateEventInput(in); err != nil {
		return PublishResult{}, err
	}

	var updated models.GroupEvent
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.events.GetEvent(ctx, eventID)
		if err != nil {
			return translate(err, ErrEventNotFound)
		}
		if current.Status == models.EventPublished && in.Status == models.EventDraft {
			return ErrEventCannotUnpublish
		}

		now := s.now().Unix()
		updated = current
		updated.Title = in.Title
		updated.Description = in.Description
		updated.TypeLabel = in.TypeLabel
		updated.StartsAt = in.StartsAt
		updated.EndsAt = in.EndsAt
		updated.ImageURL = in.ImageURL
		updated.MoreInfoURL = in.MoreInfoURL
		updated.UpdatedAt = now
		if in.Status != "" {
			updated.Status = in.Status
		}
		if updated.Status == models.EventPublished && updated.PublishedAt == 0 {
			updated.PublishedAt = now
		}
		return translate(s.events.UpdateEvent(ctx, updated), ErrEventNotFound)
	})
	if err != nil {
		return PublishResult{}, s.fail("update event", err)
	}

	result := PublishResult{Event: updated}
	if in.Status == models.EventPublished {
		s.announce(ctx, &result)
	}
	return result, nil
}

// PublishEvent moves a draft to published exactly once.
func (s *EventPublicationService) PublishEvent(ctx context.Context, caller models.Caller, eventID string) (PublishResult, error) {
	if err := requireCaller(caller); err != nil {
		return PublishResult{}, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return PublishResult{}, err
	}
	if err := s.gate.require(ctx, caller.UserID, event.GroupID, models.ActionPublishEvent, models.Resource{}); err != nil {
		return PublishResult{}, err
	}
	if event.Status == models.EventPublished {
		return PublishResult{}, ErrEventAlreadyLive
	}

	now := s.now().Unix()
	changed, err := s.events.UpdateEventStatus(ctx, eventID, models.EventDraft, models.EventPublished, now)
	if err != nil {
		return PublishResult{}, s.fail("publish event", translate(err, ErrEventNotFound))
	}
	if !changed {
		return PublishResult{}, ErrEventAlreadyLive
	}
	event.Status = models.EventPublished
	event.UpdatedAt = now
	if event.PublishedAt == 0 {
		event.PublishedAt = now
	}
	s.metrics.Inc("events_published_total")

	result := PublishResult{Event: event}
	s.announce(ctx, &result)
	return result, nil
}

func (s *EventPublicationService) DeleteEvent(ctx context.Context, caller models.Caller, eventID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.gate.require(ctx, caller.UserID, event.GroupID, models.ActionDeleteEvent, models.Resource{}); err != nil {
		return err
	}
	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		return s.fail("delete event", translate(err, ErrEventNotFound))
	}
	s.metrics.Inc("events_deleted_total")
	return nil
}

// GetEvent hides drafts from everyone but the group's moderators.
func (s *EventPublicationService) GetEvent(ctx context.Context, caller models.Caller, eventID string) (models.GroupEvent, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return models.GroupEvent{}, err
	}
	if event.Status == models.EventDraft && !s.roles.ClassifyRole(ctx, caller.UserID, event.GroupID).IsPrivileged() {
		return models.GroupEvent{}, ErrEventNotFound
	}
	return event, nil
}

func (s *EventPublicationService) ListEvents(ctx context.Context, caller models.Caller, groupID string, startsAfter *int64, limit int) ([]models.GroupEvent, error) {
	filter := storage.EventFilter{
		GroupID:       groupID,
		StartsAfter:   startsAfter,
		Limit:         limit,
		IncludeDrafts: s.roles.ClassifyRole(ctx, caller.UserID, groupID).IsPrivileged(),
	}
	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, s.fail("list events", upstream(err))
	}
	return events, nil
}

// announce inserts the feed post for a published event. Failures are
// logged and counted, then reported on result; the event stays published.
func (s *EventPublicationService) announce(ctx context.Context, result *PublishResult) {
	event := result.Event
	now := s.now().Unix()
	post := models.FeedPost{
		PostID:    uuid.NewString(),
		GroupID:   event.GroupID,
		Context:   models.FeedContextGroup,
		AuthorID:  s.system.PubKey(),
		Body:      FormatAnnouncement(event, s.loc),
		ImageURL:  event.ImageURL,
		LinkURL:   event.MoreInfoURL,
		Status:    models.PostActive,
		EventID:   event.EventID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := func() error {
		sig, err := s.system.Sign(post)
		if err != nil {
			return err
		}
		post.SystemSignature = sig
		return s.feed.InsertFeedPost(ctx, s.system.Actor(), post)
	}()
	if err != nil {
		s.metrics.Inc("event_announcement_failed_total")
		s.logger.Error("event announcement failed",
			"event_id", event.EventID,
			"group_id", event.GroupID,
			"error", err,
		)
		result.AnnouncementError = announcementFailedMessage
		return
	}
	s.metrics.Inc("event_announcements_total")
	result.AnnouncementID = post.PostID
}

func (s *EventPublicationService) loadEvent(ctx context.Context, eventID string) (models.GroupEvent, error) {
	if uuid.Validate(eventID) != nil {
		return models.GroupEvent{}, ErrEventNotFound
	}
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return models.GroupEvent{}, s.fail("get event", translate(err, ErrEventNotFound))
	}
	return event, nil
}

func (s *EventPublicationService) fail(op string, err error) error {
	logFailure(s.logger, op, err)
	return err
}
