package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/im7mortal/kmutex"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

const (
	upsertAttempts = 3
	upsertDelay    = 10 * time.Millisecond
)

// AssignmentStore is the persistence the Assigner needs
type AssignmentStore interface {
	FindActive(ctx context.Context, target models.Target) (*models.Assignment, error)
	FindByTarget(ctx context.Context, target models.Target) (*models.Assignment, error)
	Upsert(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error)
	Deactivate(ctx context.Context, id uint64) (bool, error)
	Delete(ctx context.Context, id uint64) error
	CountActiveForUser(ctx context.Context, userID uint64) (int64, error)
}

// AssignOptions tunes Assign
type AssignOptions struct {
	Note                string
	Status              string
	Silent              bool
	SkipSmallActionPost bool
}

// UnassignOptions tunes Unassign
type UnassignOptions struct {
	Silent     bool
	HardDelete bool
}

// DefaultAssignee picks who a new post should be assigned to
type DefaultAssignee interface {
	// Resolve returns the assignee and acting user, or nil when the post
	// names nobody
	Resolve(ctx context.Context, post *models.Post) (assignee *models.User, actor *models.User, err error)
}

// Assigner creates, changes and removes assignments
type Assigner struct {
	settings   *config.AssignSettings
	store      AssignmentStore
	topicRepo  *repository.TopicRepository
	postRepo   *repository.PostRepository
	userRepo   *repository.UserRepository
	groupRepo  *repository.GroupRepository
	authorizer Authorizer
	dispatcher *NotificationDispatcher
	webhooks   *WebhookNotifier
	defaults   DefaultAssignee
	locks      *kmutex.Kmutex
	retryClock clock.Clock
	metrics    *AssignMetrics
}

// AssignerDeps groups the Assigner's collaborators
type AssignerDeps struct {
	Settings   *config.AssignSettings
	Store      AssignmentStore
	Topics     *repository.TopicRepository
	Posts      *repository.PostRepository
	Users      *repository.UserRepository
	Groups     *repository.GroupRepository
	Authorizer Authorizer
	Dispatcher *NotificationDispatcher
	Webhooks   *WebhookNotifier
	Defaults   DefaultAssignee
	Metrics    *AssignMetrics
}

func NewAssigner(deps AssignerDeps) *Assigner {
	return &Assigner{
		settings:   deps.Settings,
		store:      deps.Store,
		topicRepo:  deps.Topics,
		postRepo:   deps.Posts,
		userRepo:   deps.Users,
		groupRepo:  deps.Groups,
		authorizer: deps.Authorizer,
		dispatcher: deps.Dispatcher,
		webhooks:   deps.Webhooks,
		defaults:   deps.Defaults,
		locks:      kmutex.New(),
		retryClock: clock.WallClock,
		metrics:    deps.Metrics,
	}
}

// Assign makes assignee responsible for target. Reassigning an active
// target updates the row in place; assigning the current assignee again
// only refreshes the row and sends nothing.
func (a *Assigner) Assign(ctx context.Context, target models.Target, assignee models.Assignee, actor *models.User, opts AssignOptions) (*models.Assignment, error) {
	assignment, err := a.assign(ctx, target, assignee, actor, opts)
	a.metrics.operation("assign", err)
	return assignment, err
}

func (a *Assigner) assign(ctx context.Context, target models.Target, assignee models.Assignee, actor *models.User, opts AssignOptions) (*models.Assignment, error) {
	if !a.settings.Enabled {
		return nil, ErrAssignDisabled
	}
	if actor == nil {
		return nil, fmt.Errorf("%w: assign needs an acting user", ErrPermissionDenied)
	}

	allowed, err := a.authorizer.CanAssign(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: user %d may not assign", ErrPermissionDenied, actor.ID)
	}

	target, topicID, err := a.resolveTarget(ctx, target, false)
	if err != nil {
		return nil, err
	}
	if err := a.checkAssignee(ctx, assignee, actor); err != nil {
		return nil, err
	}
	status, err := a.resolveStatus(opts.Status)
	if err != nil {
		return nil, err
	}

	a.locks.Lock(target.Key())
	defer a.locks.Unlock(target.Key())

	current, err := a.store.FindActive(ctx, target)
	if err != nil && !isRecordNotFound(err) {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	alreadyAssigned := current != nil && current.Assignee() == assignee

	if assignee.Type == models.AssigneeUser && !alreadyAssigned && a.settings.MaxAssignedTopics > 0 {
		count, err := a.store.CountActiveForUser(ctx, assignee.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count assignments: %w", err)
		}
		if count >= int64(a.settings.MaxAssignedTopics) {
			return nil, fmt.Errorf("%w: user %d has %d", ErrTooManyAssigns, assignee.ID, count)
		}
	}

	var assignment *models.Assignment
	var previous *models.Assignment
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			row := &models.Assignment{
				TopicID:        topicID,
				TargetType:     target.Type,
				TargetID:       target.ID,
				AssignedToType: assignee.Type,
				AssignedToID:   assignee.ID,
				AssignedByID:   actor.ID,
				Note:           opts.Note,
				Status:         status,
			}
			prev, err := a.store.Upsert(ctx, row)
			if err != nil {
				return err
			}
			assignment, previous = row, prev
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, ErrConcurrentModification)
		},
		NotifyFunc: func(err error, attempt int) {
			a.metrics.casRetry()
			logrus.Debugf("Assign %s attempt %d lost a concurrent write: %v", target.Key(), attempt, err)
		},
		Attempts: upsertAttempts,
		Delay:    upsertDelay,
		Clock:    a.retryClock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save assignment: %w", err)
	}

	cacheFrom(ctx).invalidate(target)

	logrus.WithFields(logrus.Fields{
		"assignment_id": assignment.ID,
		"target":        target.Key(),
		"assignee":      fmt.Sprintf("%s:%d", assignee.Type, assignee.ID),
		"actor_id":      actor.ID,
	}).Info("Assignment saved")

	wasActive := previous != nil && previous.Active
	if wasActive && previous.Assignee() == assignee {
		return assignment, nil
	}
	// Webhooks see every change, silent ones included
	a.webhooks.Enqueue(ctx, WebhookAssigned, assignment, actor.ID)

	if opts.Silent || a.dispatcher == nil {
		return assignment, nil
	}
	if wasActive {
		a.dispatcher.EnqueueUnassigned(ctx, previous, actor.ID)
	}
	a.dispatcher.EnqueueAssigned(ctx, assignment, NotifyOptions{SkipSmallActionPost: opts.SkipSmallActionPost})
	a.dispatcher.PublishTopicRefresh(ctx, topicID)

	return assignment, nil
}

// Unassign deactivates the target's active assignment. A nil actor is the
// system actor and skips the permission check.
func (a *Assigner) Unassign(ctx context.Context, target models.Target, actor *models.User, opts UnassignOptions) error {
	err := a.unassign(ctx, target, actor, opts)
	a.metrics.operation("unassign", err)
	return err
}

func (a *Assigner) unassign(ctx context.Context, target models.Target, actor *models.User, opts UnassignOptions) error {
	if !a.settings.Enabled {
		return ErrAssignDisabled
	}

	actorID := models.SystemUserID
	if actor != nil {
		actorID = actor.ID
		allowed, err := a.authorizer.CanAssign(ctx, actor)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%w: user %d may not unassign", ErrPermissionDenied, actor.ID)
		}
	}

	target, topicID, err := a.resolveTarget(ctx, target, true)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	a.locks.Lock(target.Key())
	defer a.locks.Unlock(target.Key())

	current, err := a.store.FindActive(ctx, target)
	if isRecordNotFound(err) {
		return ErrNotAssigned
	}
	if err != nil {
		return fmt.Errorf("failed to load assignment: %w", err)
	}

	if opts.HardDelete {
		if err := a.store.Delete(ctx, current.ID); err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}
	} else {
		changed, err := a.store.Deactivate(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("failed to deactivate assignment: %w", err)
		}
		if !changed {
			return ErrNotAssigned
		}
	}
	current.Active = false

	cacheFrom(ctx).invalidate(target)

	logrus.WithFields(logrus.Fields{
		"assignment_id": current.ID,
		"target":        target.Key(),
		"actor_id":      actorID,
		"silent":        opts.Silent,
	}).Info("Assignment removed")

	a.webhooks.Enqueue(ctx, WebhookUnassigned, current, actorID)

	if opts.Silent || a.dispatcher == nil {
		return nil
	}
	a.dispatcher.EnqueueUnassigned(ctx, current, actorID)
	if topicID == 0 {
		topicID = current.TopicID
	}
	a.dispatcher.PublishTopicRefresh(ctx, topicID)
	return nil
}

// AutoAssign assigns the post's topic to the default assignee, if one is
// configured and names someone. Without force an existing assignment wins.
func (a *Assigner) AutoAssign(ctx context.Context, post *models.Post, force bool) error {
	if a.defaults == nil || !a.settings.Enabled {
		return nil
	}

	assignee, actor, err := a.defaults.Resolve(ctx, post)
	if err != nil {
		return err
	}
	if assignee == nil || actor == nil {
		return nil
	}

	target := models.TopicTarget(post.TopicID)
	if !force {
		existing, err := a.AssignedTo(ctx, target)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}

	_, err = a.Assign(ctx, target, models.UserAssignee(assignee.ID), actor, AssignOptions{})
	return err
}

// AssignedTo returns the target's active assignment or nil. Results are
// cached on contexts prepared with WithAssignmentCache.
func (a *Assigner) AssignedTo(ctx context.Context, target models.Target) (*models.Assignment, error) {
	cache := cacheFrom(ctx)
	if assignment, ok := cache.get(target); ok {
		return assignment, nil
	}

	assignment, err := a.store.FindActive(ctx, target)
	if isRecordNotFound(err) {
		cache.put(target, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cache.put(target, assignment)
	return assignment, nil
}

// resolveTarget validates the target and returns it with its topic id. A
// post that opens its topic is treated as the topic itself, unless the post
// already owns an assignment row (it was moved to the top of a topic that
// has its own assignment).
func (a *Assigner) resolveTarget(ctx context.Context, target models.Target, includeDeleted bool) (models.Target, uint64, error) {
	if !target.Valid() {
		return target, 0, fmt.Errorf("%w: %s", ErrInvalidTarget, target.Key())
	}

	switch target.Type {
	case models.TargetTopic:
		var err error
		if includeDeleted {
			_, err = a.topicRepo.GetByIDUnscoped(ctx, target.ID)
		} else {
			_, err = a.topicRepo.GetByID(ctx, target.ID)
		}
		if err != nil {
			return target, 0, notFound(err, "topic %d", target.ID)
		}
		return target, target.ID, nil
	default:
		var post *models.Post
		var err error
		if includeDeleted {
			post, err = a.postRepo.GetByIDUnscoped(ctx, target.ID)
		} else {
			post, err = a.postRepo.GetByID(ctx, target.ID)
		}
		if err != nil {
			return target, 0, notFound(err, "post %d", target.ID)
		}
		if !post.IsFirstPost() {
			return target, post.TopicID, nil
		}
		_, err = a.store.FindByTarget(ctx, target)
		switch {
		case err == nil:
			return target, post.TopicID, nil
		case isRecordNotFound(err):
			return models.TopicTarget(post.TopicID), post.TopicID, nil
		default:
			return target, 0, fmt.Errorf("failed to load assignment: %w", err)
		}
	}
}

func (a *Assigner) checkAssignee(ctx context.Context, assignee models.Assignee, actor *models.User) error {
	switch assignee.Type {
	case models.AssigneeUser:
		user, err := a.userRepo.GetByID(ctx, assignee.ID)
		if err != nil {
			return notFound(err, "user %d", assignee.ID)
		}
		ok, err := a.authorizer.CanBeAssigned(ctx, user)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: user %s", ErrAssigneeNotAllowed, user.Username)
		}
	case models.AssigneeGroup:
		group, err := a.groupRepo.GetByID(ctx, assignee.ID)
		if err != nil {
			return notFound(err, "group %d", assignee.ID)
		}
		ok, err := a.authorizer.CanAssignToGroup(ctx, actor, group)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: group %s", ErrAssigneeNotAllowed, group.Name)
		}
	default:
		return fmt.Errorf("%w: assignee type %q", ErrInvalidTarget, assignee.Type)
	}
	return nil
}

func (a *Assigner) resolveStatus(status string) (string, error) {
	if !a.settings.EnableStatus {
		return "", nil
	}
	if status == "" {
		return a.settings.DefaultStatus, nil
	}
	if !a.settings.IsValidStatus(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return status, nil
}
