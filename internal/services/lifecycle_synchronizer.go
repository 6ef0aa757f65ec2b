package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// EventKind names a forum lifecycle event
type EventKind string

const (
	EventTopicClosed          EventKind = "topic_closed"
	EventTopicAutoclosed      EventKind = "topic_autoclosed"
	EventTopicReopened        EventKind = "topic_reopened"
	EventPostCreated          EventKind = "post_created"
	EventPostEdited           EventKind = "post_edited"
	EventPostDestroyed        EventKind = "post_destroyed"
	EventPostRecovered        EventKind = "post_recovered"
	EventPostMoved            EventKind = "post_moved"
	EventMessageArchived      EventKind = "message_archived"
	EventMessageMovedToInbox  EventKind = "message_moved_to_inbox"
	EventUserRemovedFromGroup EventKind = "user_removed_from_group"
	EventGroupRenamed         EventKind = "group_renamed"
	EventGroupDestroyed       EventKind = "group_destroyed"
)

// Event is a lifecycle event. Only the fields relevant to Kind are set.
type Event struct {
	Kind            EventKind `json:"kind" binding:"required" example:"topic_closed"`
	TopicID         uint64    `json:"topic_id,omitempty" example:"42"`
	PostID          uint64    `json:"post_id,omitempty"`
	OriginalTopicID uint64    `json:"original_topic_id,omitempty"`
	UserID          uint64    `json:"user_id,omitempty"`
	// GroupID is the group inbox for message events and the group for
	// membership and group events
	GroupID uint64 `json:"group_id,omitempty"`
	OldName string `json:"old_name,omitempty"`
	NewName string `json:"new_name,omitempty"`
}

// LifecycleSynchronizer keeps assignments consistent with topic, post,
// message and group lifecycle events. Every handler is safe to replay.
type LifecycleSynchronizer struct {
	settings   *config.AssignSettings
	assigner   *Assigner
	store      *repository.AssignmentRepository
	postRepo   *repository.PostRepository
	groupRepo  *repository.GroupRepository
	userRepo   *repository.UserRepository
	policy     *Policy
	dispatcher *NotificationDispatcher
	metrics    *AssignMetrics
}

// SynchronizerDeps groups the synchronizer's collaborators
type SynchronizerDeps struct {
	Settings   *config.AssignSettings
	Assigner   *Assigner
	Store      *repository.AssignmentRepository
	Posts      *repository.PostRepository
	Groups     *repository.GroupRepository
	Users      *repository.UserRepository
	Policy     *Policy
	Dispatcher *NotificationDispatcher
	Metrics    *AssignMetrics
}

func NewLifecycleSynchronizer(deps SynchronizerDeps) *LifecycleSynchronizer {
	return &LifecycleSynchronizer{
		settings:   deps.Settings,
		assigner:   deps.Assigner,
		store:      deps.Store,
		postRepo:   deps.Posts,
		groupRepo:  deps.Groups,
		userRepo:   deps.Users,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// Handle applies one lifecycle event
func (s *LifecycleSynchronizer) Handle(ctx context.Context, ev Event) error {
	var err error
	switch ev.Kind {
	case EventTopicClosed, EventTopicAutoclosed:
		err = s.topicClosed(ctx, ev.TopicID)
	case EventTopicReopened:
		err = s.topicReopened(ctx, ev.TopicID)
	case EventPostCreated, EventPostEdited:
		err = s.postChanged(ctx, ev.PostID)
	case EventPostDestroyed:
		err = s.postDestroyed(ctx, ev.PostID)
	case EventPostRecovered:
		err = s.postRecovered(ctx, ev.PostID)
	case EventPostMoved:
		err = s.postMoved(ctx, ev.PostID, ev.OriginalTopicID)
	case EventMessageArchived:
		err = s.messageArchived(ctx, ev.TopicID, ev.GroupID)
	case EventMessageMovedToInbox:
		err = s.messageMovedToInbox(ctx, ev.TopicID, ev.GroupID)
	case EventUserRemovedFromGroup:
		err = s.userRemovedFromGroup(ctx, ev.UserID, ev.GroupID)
	case EventGroupRenamed:
		err = s.policy.RenameAllowedGroup(ctx, ev.OldName, ev.NewName)
	case EventGroupDestroyed:
		err = s.policy.RemoveAllowedGroup(ctx, ev.GroupID, ev.OldName)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownEvent, ev.Kind)
	}

	s.metrics.lifecycleEvent(ev.Kind, err)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"event":    ev.Kind,
			"topic_id": ev.TopicID,
			"post_id":  ev.PostID,
		}).Errorf("Lifecycle event failed: %v", err)
	}
	return err
}

// topicClosed deactivates the loaded rows directly. A post row can share its
// topic with a topic row after a move, so targets are not re-resolved.
func (s *LifecycleSynchronizer) topicClosed(ctx context.Context, topicID uint64) error {
	if !s.settings.UnassignOnClose {
		return nil
	}

	deactivated, err := s.store.DeactivateForTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("failed to unassign topic %d on close: %w", topicID, err)
	}
	if len(deactivated) == 0 {
		return nil
	}

	cache := cacheFrom(ctx)
	for i := range deactivated {
		cache.invalidate(deactivated[i].Target())
		s.assigner.webhooks.Enqueue(ctx, WebhookUnassigned, &deactivated[i], models.SystemUserID)
	}
	logrus.WithFields(logrus.Fields{
		"topic_id": topicID,
		"count":    len(deactivated),
	}).Info("Assignments removed on close")

	s.dispatcher.PublishTopicRefresh(ctx, topicID)
	return nil
}

func (s *LifecycleSynchronizer) topicReopened(ctx context.Context, topicID uint64) error {
	if !s.settings.ReassignOnOpen {
		return nil
	}

	reactivated, err := s.store.ReactivateForTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("failed to reactivate assignments of topic %d: %w", topicID, err)
	}
	if len(reactivated) > 0 {
		s.dispatcher.PublishTopicRefresh(ctx, topicID)
	}
	return nil
}

func (s *LifecycleSynchronizer) postChanged(ctx context.Context, postID uint64) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if isRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.assigner.AutoAssign(ctx, post, true)
}

func (s *LifecycleSynchronizer) postDestroyed(ctx context.Context, postID uint64) error {
	assignment, err := s.store.FindActive(ctx, models.PostTarget(postID))
	switch {
	case err == nil:
		changed, err := s.store.Deactivate(ctx, assignment.ID)
		if err != nil {
			return fmt.Errorf("failed to deactivate assignment of post %d: %w", postID, err)
		}
		if changed {
			s.dispatcher.PublishTopicRefresh(ctx, assignment.TopicID)
		}
	case !isRecordNotFound(err):
		return err
	}

	// Annotation posts link to the destroyed post
	purged, err := s.postRepo.DestroyAnnotationsFor(ctx, postID)
	if err != nil {
		logrus.Warnf("Failed to purge annotations of post %d: %v", postID, err)
	} else if purged > 0 {
		logrus.Debugf("Purged %d annotation posts of post %d", purged, postID)
	}
	return nil
}

func (s *LifecycleSynchronizer) postRecovered(ctx context.Context, postID uint64) error {
	if !s.settings.ReassignOnOpen {
		return nil
	}

	assignment, err := s.store.FindByTarget(ctx, models.PostTarget(postID))
	if isRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if assignment.Active {
		return nil
	}

	changed, err := s.store.Reactivate(ctx, assignment.ID)
	if err != nil {
		return fmt.Errorf("failed to reactivate assignment of post %d: %w", postID, err)
	}
	if changed {
		s.dispatcher.PublishTopicRefresh(ctx, assignment.TopicID)
	}
	return nil
}

func (s *LifecycleSynchronizer) postMoved(ctx context.Context, postID, originalTopicID uint64) error {
	assignment, err := s.store.FindByTarget(ctx, models.PostTarget(postID))
	if isRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if originalTopicID != 0 && assignment.TopicID != originalTopicID {
		return nil
	}

	post, err := s.postRepo.GetByIDUnscoped(ctx, postID)
	if err != nil {
		return notFound(err, "post %d", postID)
	}

	var retarget *models.Target
	if post.IsFirstPost() {
		topicTarget := models.TopicTarget(post.TopicID)
		_, err := s.store.FindByTarget(ctx, topicTarget)
		switch {
		case isRecordNotFound(err):
			retarget = &topicTarget
		case err != nil:
			return err
		default:
			logrus.Warnf("Topic %d already has an assignment, keeping post %d target", post.TopicID, postID)
		}
	}

	if err := s.store.MigrateTarget(ctx, assignment.ID, post.TopicID, retarget); err != nil {
		return fmt.Errorf("failed to migrate assignment %d: %w", assignment.ID, err)
	}
	if assignment.Active {
		s.dispatcher.PublishTopicRefresh(ctx, post.TopicID)
	}
	return nil
}

func (s *LifecycleSynchronizer) messageArchived(ctx context.Context, topicID, groupID uint64) error {
	active, err := s.store.FindActiveByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	s.republish(ctx, active)

	if !s.settings.UnassignOnGroupArchive || groupID == 0 {
		return nil
	}

	deactivated, err := s.store.DeactivateForTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("failed to deactivate assignments of message %d: %w", topicID, err)
	}
	for i := range deactivated {
		s.dispatcher.EnqueueUnassigned(ctx, &deactivated[i], models.SystemUserID)
	}
	return nil
}

func (s *LifecycleSynchronizer) messageMovedToInbox(ctx context.Context, topicID, groupID uint64) error {
	active, err := s.store.FindActiveByTopic(ctx, topicID)
	if err != nil {
		return err
	}
	s.republish(ctx, active)

	if !s.settings.UnassignOnGroupArchive || groupID == 0 {
		return nil
	}

	reactivated, err := s.store.ReactivateForTopic(ctx, topicID)
	if err != nil {
		return fmt.Errorf("failed to reactivate assignments of message %d: %w", topicID, err)
	}
	for i := range reactivated {
		s.dispatcher.EnqueueAssigned(ctx, &reactivated[i], NotifyOptions{SkipSmallActionPost: true})
	}
	return nil
}

// republish refreshes the assignees' assigned-message lists
func (s *LifecycleSynchronizer) republish(ctx context.Context, assignments []models.Assignment) {
	if len(assignments) == 0 {
		return
	}
	topic := &models.Topic{ID: assignments[0].TopicID, Archetype: models.ArchetypePrivateMessage}
	for _, assignment := range assignments {
		s.dispatcher.PublishRealtime(ctx, topic, assignment.Assignee(), realtimeEventAssigned)
	}
}

func (s *LifecycleSynchronizer) userRemovedFromGroup(ctx context.Context, userID, groupID uint64) error {
	group, err := s.groupRepo.GetByID(ctx, groupID)
	if isRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	allowed, err := s.policy.IsAllowedGroup(ctx, group)
	if err != nil || !allowed {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if isRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	stillAllowed, err := s.policy.CanBeAssigned(ctx, user)
	if err != nil || stillAllowed {
		return err
	}

	assignments, err := s.store.ActiveForAssignee(ctx, models.UserAssignee(userID))
	if err != nil {
		return err
	}
	for _, assignment := range assignments {
		err := s.assigner.Unassign(ctx, assignment.Target(), nil, UnassignOptions{})
		if err != nil && !errors.Is(err, ErrNotAssigned) {
			return fmt.Errorf("failed to unassign %s: %w", assignment.Target().Key(), err)
		}
	}

	logrus.Infof("Unassigned %d assignments of user %d after leaving group %s", len(assignments), userID, group.Name)
	return nil
}
