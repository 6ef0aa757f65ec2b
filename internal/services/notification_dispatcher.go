package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

const (
	excerptLength = 200

	channelAssigned         = "/assigned"
	channelPrivateAssigned  = "/private-messages/assigned"
	realtimeEventAssigned   = "assigned"
	realtimeEventUnassigned = "unassigned"
	systemActorDisplayName  = "system"
	unknownAssigneeName     = "unknown"
)

// NotificationStore persists notifications
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// NotifyOptions tunes an assigned notification
type NotifyOptions struct {
	SkipSmallActionPost bool
}

// DeliveryFailure is one recipient that could not be notified
type DeliveryFailure struct {
	UserID uint64
	Err    error
}

// DeliveryReport summarizes one notification fan-out
type DeliveryReport struct {
	AssignmentID     uint64
	Delivered        []uint64
	Skipped          []uint64
	Failures         []DeliveryFailure
	AnnotationPostID *uint64
}

func (r *DeliveryReport) record(mu *sync.Mutex, userID uint64, err error) {
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		r.Failures = append(r.Failures, DeliveryFailure{UserID: userID, Err: err})
		return
	}
	r.Delivered = append(r.Delivered, userID)
}

// NotificationDispatcher turns assignment changes into notifications,
// annotation posts and realtime messages
type NotificationDispatcher struct {
	settings      *config.AssignSettings
	queue         JobQueue
	notifications NotificationStore
	userRepo      *repository.UserRepository
	groupRepo     *repository.GroupRepository
	topicRepo     *repository.TopicRepository
	postRepo      *repository.PostRepository
	realtime      RealtimePublisher
	clock         clock.Clock
	metrics       *AssignMetrics
}

// DispatcherDeps groups the dispatcher's collaborators
type DispatcherDeps struct {
	Settings      *config.AssignSettings
	Queue         JobQueue
	Notifications NotificationStore
	Users         *repository.UserRepository
	Groups        *repository.GroupRepository
	Topics        *repository.TopicRepository
	Posts         *repository.PostRepository
	Realtime      RealtimePublisher
	Clock         clock.Clock
	Metrics       *AssignMetrics
}

func NewNotificationDispatcher(deps DispatcherDeps) *NotificationDispatcher {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &NotificationDispatcher{
		settings:      deps.Settings,
		queue:         deps.Queue,
		notifications: deps.Notifications,
		userRepo:      deps.Users,
		groupRepo:     deps.Groups,
		topicRepo:     deps.Topics,
		postRepo:      deps.Posts,
		realtime:      deps.Realtime,
		clock:         clk,
		metrics:       deps.Metrics,
	}
}

// SetQueue replaces the job queue; the queue usually needs the dispatcher's
// handlers registered first
func (d *NotificationDispatcher) SetQueue(queue JobQueue) {
	d.queue = queue
}

// RegisterJobs registers the notification job handlers on runner
func (d *NotificationDispatcher) RegisterJobs(runner *JobRunner) {
	runner.Register(JobAssignNotification, func(ctx context.Context, job Job) error {
		if job.Assignment == nil {
			return fmt.Errorf("job %s has no assignment", job.ID)
		}
		d.NotifyAssigned(ctx, job.Assignment, NotifyOptions{SkipSmallActionPost: job.SkipSmallActionPost})
		return nil
	})
	runner.Register(JobUnassignNotification, func(ctx context.Context, job Job) error {
		if job.Assignment == nil {
			return fmt.Errorf("job %s has no assignment", job.ID)
		}
		d.NotifyUnassigned(ctx, job.Assignment, job.ActorID)
		return nil
	})
}

// EnqueueAssigned schedules the assigned notification. Failures are logged.
func (d *NotificationDispatcher) EnqueueAssigned(ctx context.Context, assignment *models.Assignment, opts NotifyOptions) {
	job := NewJob(JobAssignNotification)
	snapshot := *assignment
	job.Assignment = &snapshot
	job.ActorID = assignment.AssignedByID
	job.SkipSmallActionPost = opts.SkipSmallActionPost
	d.enqueue(ctx, job)
}

// EnqueueUnassigned schedules the unassigned notification for the
// assignment's (former) assignee. Failures are logged.
func (d *NotificationDispatcher) EnqueueUnassigned(ctx context.Context, assignment *models.Assignment, actorID uint64) {
	job := NewJob(JobUnassignNotification)
	snapshot := *assignment
	job.Assignment = &snapshot
	job.ActorID = actorID
	d.enqueue(ctx, job)
}

func (d *NotificationDispatcher) enqueue(ctx context.Context, job Job) {
	if d.queue == nil {
		logrus.Warnf("No job queue configured, dropping %s job for assignment %d", job.Kind, job.Assignment.ID)
		return
	}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		logrus.WithFields(logrus.Fields{
			"job_id":        job.ID,
			"job_kind":      job.Kind,
			"assignment_id": job.Assignment.ID,
		}).Errorf("Failed to enqueue notification job: %v", err)
		sentry.CaptureException(err)
	}
}

// NotifyAssigned notifies the assignee (or every eligible group member) and
// writes the annotation post. Failures end up in the report.
func (d *NotificationDispatcher) NotifyAssigned(ctx context.Context, assignment *models.Assignment, opts NotifyOptions) DeliveryReport {
	report := DeliveryReport{AssignmentID: assignment.ID}

	topic, err := d.topicRepo.GetByIDUnscoped(ctx, assignment.TopicID)
	if err != nil {
		d.fail(&report, 0, models.NotificationAssigned, notFound(err, "topic %d", assignment.TopicID))
		return report
	}

	actorName := d.actorName(ctx, assignment.AssignedByID)
	assigneeName := d.assigneeName(ctx, assignment.Assignee())
	postNumber, excerpt := d.targetDetails(ctx, assignment, topic)

	messageKey := models.MessageKeyAssigned
	if assignment.AssignedToGroup() {
		messageKey = models.MessageKeyAssignedGroup
	}

	recipients, skipped, err := d.recipients(ctx, assignment.Assignee(), assignment.AssignedByID)
	if err != nil {
		d.fail(&report, 0, models.NotificationAssigned, err)
	}
	report.Skipped = skipped
	for range skipped {
		d.metrics.notification(models.NotificationAssigned, "skipped")
	}

	d.fanOut(ctx, &report, recipients, models.NotificationAssigned, func(userID uint64) *models.Notification {
		return &models.Notification{
			UserID:           userID,
			NotificationType: models.NotificationAssigned,
			TopicID:          &topic.ID,
			PostNumber:       postNumber,
			HighPriority:     true,
			Data: datatypes.JSONMap{
				"message":          messageKey,
				"display_username": actorName,
				"topic_title":      topic.Title,
				"assignment_id":    assignment.ID,
				"assigned_to_type": string(assignment.AssignedToType),
				"assigned_to":      assigneeName,
				"excerpt":          excerpt,
			},
		}
	})

	if !opts.SkipSmallActionPost {
		postID, err := d.writeAnnotation(ctx, assignment, assigneeName)
		if err != nil {
			d.fail(&report, 0, "annotation_post", err)
		} else {
			report.AnnotationPostID = &postID
		}
	}

	d.PublishRealtime(ctx, topic, assignment.Assignee(), realtimeEventAssigned)
	d.logReport(assignment, models.NotificationAssigned, report)
	return report
}

// NotifyUnassigned tells the former assignee the assignment was removed
func (d *NotificationDispatcher) NotifyUnassigned(ctx context.Context, assignment *models.Assignment, actorID uint64) DeliveryReport {
	report := DeliveryReport{AssignmentID: assignment.ID}

	topic, err := d.topicRepo.GetByIDUnscoped(ctx, assignment.TopicID)
	if err != nil {
		d.fail(&report, 0, models.NotificationUnassigned, notFound(err, "topic %d", assignment.TopicID))
		return report
	}

	actorName := d.actorName(ctx, actorID)
	assigneeName := d.assigneeName(ctx, assignment.Assignee())
	postNumber, _ := d.targetDetails(ctx, assignment, topic)

	messageKey := models.MessageKeyUnassigned
	if assignment.AssignedToGroup() {
		messageKey = models.MessageKeyUnassignedGrp
	}

	recipients, skipped, err := d.recipients(ctx, assignment.Assignee(), actorID)
	if err != nil {
		d.fail(&report, 0, models.NotificationUnassigned, err)
	}
	report.Skipped = skipped
	for range skipped {
		d.metrics.notification(models.NotificationUnassigned, "skipped")
	}

	d.fanOut(ctx, &report, recipients, models.NotificationUnassigned, func(userID uint64) *models.Notification {
		return &models.Notification{
			UserID:           userID,
			NotificationType: models.NotificationUnassigned,
			TopicID:          &topic.ID,
			PostNumber:       postNumber,
			Data: datatypes.JSONMap{
				"message":          messageKey,
				"display_username": actorName,
				"topic_title":      topic.Title,
				"assignment_id":    assignment.ID,
				"assigned_to_type": string(assignment.AssignedToType),
				"assigned_to":      assigneeName,
			},
		}
	})

	d.PublishRealtime(ctx, topic, assignment.Assignee(), realtimeEventUnassigned)
	d.logReport(assignment, models.NotificationUnassigned, report)
	return report
}

// NotifyReminder sends one aggregate reminder listing the user's oldest
// assignments
func (d *NotificationDispatcher) NotifyReminder(ctx context.Context, user *models.User, assignments []models.Assignment, total int64) error {
	topicIDs := make([]uint64, 0, len(assignments))
	for _, a := range assignments {
		topicIDs = append(topicIDs, a.TopicID)
	}
	topics, err := d.topicRepo.GetByIDs(ctx, topicIDs)
	if err != nil {
		return fmt.Errorf("failed to load reminder topics: %w", err)
	}
	titles := make(map[uint64]string, len(topics))
	for _, topic := range topics {
		titles[topic.ID] = topic.Title
	}

	items := make([]map[string]interface{}, 0, len(assignments))
	for _, a := range assignments {
		items = append(items, map[string]interface{}{
			"topic_id":    a.TopicID,
			"target_type": string(a.TargetType),
			"target_id":   a.TargetID,
			"title":       titles[a.TopicID],
			"assigned_at": a.AssignedAt,
		})
	}

	notification := &models.Notification{
		UserID:           user.ID,
		NotificationType: models.NotificationReminder,
		HighPriority:     true,
		Data: datatypes.JSONMap{
			"message":          models.MessageKeyReminder,
			"assignment_count": total,
			"assignments":      items,
		},
	}
	if err := d.notifications.Create(ctx, notification); err != nil {
		err = fmt.Errorf("%w: reminder for user %d: %v", ErrDeliveryFailure, user.ID, err)
		d.metrics.notification(models.NotificationReminder, "failed")
		sentry.CaptureException(err)
		return err
	}
	d.metrics.notification(models.NotificationReminder, "delivered")
	return nil
}

// PublishRealtime tells the assignee's clients that their assignments changed
func (d *NotificationDispatcher) PublishRealtime(ctx context.Context, topic *models.Topic, assignee models.Assignee, event string) {
	if d.realtime == nil {
		return
	}

	channel := channelAssigned
	if topic.IsPrivateMessage() {
		channel = channelPrivateAssigned
	}

	opts := PublishOptions{}
	if assignee.Type == models.AssigneeGroup {
		opts.GroupIDs = []uint64{assignee.ID}
	} else {
		opts.UserIDs = []uint64{assignee.ID}
	}

	payload := map[string]interface{}{
		"type":             event,
		"topic_id":         topic.ID,
		"assigned_to_type": string(assignee.Type),
		"assigned_to_id":   assignee.ID,
	}
	if err := d.realtime.Publish(channel, payload, opts); err != nil {
		logrus.Errorf("Failed to publish %s for topic %d: %v", channel, topic.ID, err)
	}
}

// PublishTopicRefresh asks clients viewing the topic to reload it
func (d *NotificationDispatcher) PublishTopicRefresh(ctx context.Context, topicID uint64) {
	if d.realtime == nil {
		return
	}

	channel := fmt.Sprintf("/topic/%d", topicID)
	payload := map[string]interface{}{
		"type":           "assigned",
		"reload_topic":   true,
		"refresh_stream": true,
	}
	if err := d.realtime.Publish(channel, payload, PublishOptions{}); err != nil {
		logrus.Errorf("Failed to publish %s: %v", channel, err)
	}
}

// recipients resolves the users to notify. Inactive or suspended users are
// skipped and the actor never notifies themselves.
func (d *NotificationDispatcher) recipients(ctx context.Context, assignee models.Assignee, actorID uint64) ([]uint64, []uint64, error) {
	var users []models.User
	switch assignee.Type {
	case models.AssigneeUser:
		user, err := d.userRepo.GetByID(ctx, assignee.ID)
		if err != nil {
			return nil, nil, notFound(err, "assignee user %d", assignee.ID)
		}
		users = []models.User{*user}
	case models.AssigneeGroup:
		members, err := d.groupRepo.Members(ctx, assignee.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load members of group %d: %w", assignee.ID, err)
		}
		users = members
	default:
		return nil, nil, fmt.Errorf("%w: assignee type %q", ErrInvalidTarget, assignee.Type)
	}

	now := d.clock.Now()
	var recipients, skipped []uint64
	for _, user := range users {
		if user.ID == actorID || !user.CanReceiveNotifications(now) {
			skipped = append(skipped, user.ID)
			continue
		}
		recipients = append(recipients, user.ID)
	}
	return recipients, skipped, nil
}

// fanOut creates one notification per recipient with bounded parallelism
func (d *NotificationDispatcher) fanOut(ctx context.Context, report *DeliveryReport, recipients []uint64, notificationType string, build func(userID uint64) *models.Notification) {
	var mu sync.Mutex
	var g errgroup.Group
	limit := d.settings.NotifyConcurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, userID := range recipients {
		userID := userID
		g.Go(func() error {
			err := d.notifications.Create(ctx, build(userID))
			if err != nil {
				err = fmt.Errorf("%w: user %d: %v", ErrDeliveryFailure, userID, err)
				sentry.CaptureException(err)
				d.metrics.notification(notificationType, "failed")
			} else {
				d.metrics.notification(notificationType, "delivered")
			}
			report.record(&mu, userID, err)
			return nil
		})
	}
	g.Wait()
}

// writeAnnotation appends the small action (or whisper) describing the
// assignment to the topic
func (d *NotificationDispatcher) writeAnnotation(ctx context.Context, assignment *models.Assignment, assigneeName string) (uint64, error) {
	postType := models.PostTypeWhisper
	if d.settings.Public {
		postType = models.PostTypeSmallAction
	}

	var actionCode string
	var referenced *uint64
	switch {
	case assignment.TargetType == models.TargetPost && assignment.AssignedToGroup():
		actionCode = models.ActionCodeAssignedGroupToPost
	case assignment.TargetType == models.TargetPost:
		actionCode = models.ActionCodeAssignedToPost
	case assignment.AssignedToGroup():
		actionCode = models.ActionCodeAssignedGroup
	default:
		actionCode = models.ActionCodeAssigned
	}
	if assignment.TargetType == models.TargetPost {
		postID := assignment.TargetID
		referenced = &postID
	}

	post := &models.Post{
		TopicID:          assignment.TopicID,
		PostType:         postType,
		UserID:           assignment.AssignedByID,
		ActionCode:       actionCode,
		ActionCodeWho:    assigneeName,
		ActionCodePostID: referenced,
	}
	if err := d.postRepo.Create(ctx, post); err != nil {
		return 0, fmt.Errorf("failed to create annotation post: %w", err)
	}
	return post.ID, nil
}

// targetDetails returns the post number to link and the notification
// excerpt: the note when set, otherwise the start of the assigned post or
// the topic title for topic targets
func (d *NotificationDispatcher) targetDetails(ctx context.Context, assignment *models.Assignment, topic *models.Topic) (int, string) {
	postNumber := 1
	excerpt := strings.TrimSpace(assignment.Note)

	if assignment.TargetType != models.TargetPost {
		if excerpt == "" {
			excerpt = Excerpt(topic.Title, excerptLength)
		}
		return postNumber, excerpt
	}

	post, err := d.postRepo.GetByIDUnscoped(ctx, assignment.TargetID)
	if err != nil {
		logrus.Warnf("Failed to load post %d for assignment %d: %v", assignment.TargetID, assignment.ID, err)
		return postNumber, excerpt
	}
	if excerpt == "" {
		excerpt = Excerpt(post.Raw, excerptLength)
	}
	return post.PostNumber, excerpt
}

func (d *NotificationDispatcher) actorName(ctx context.Context, actorID uint64) string {
	if actorID == models.SystemUserID {
		return systemActorDisplayName
	}
	actor, err := d.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return unknownAssigneeName
	}
	return actor.Username
}

func (d *NotificationDispatcher) assigneeName(ctx context.Context, assignee models.Assignee) string {
	switch assignee.Type {
	case models.AssigneeGroup:
		if group, err := d.groupRepo.GetByID(ctx, assignee.ID); err == nil {
			return group.Name
		}
	case models.AssigneeUser:
		if user, err := d.userRepo.GetByID(ctx, assignee.ID); err == nil {
			return user.Username
		}
	}
	return unknownAssigneeName
}

func (d *NotificationDispatcher) fail(report *DeliveryReport, userID uint64, notificationType string, err error) {
	err = fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	report.Failures = append(report.Failures, DeliveryFailure{UserID: userID, Err: err})
	d.metrics.notification(notificationType, "failed")
	sentry.CaptureException(err)
}

func (d *NotificationDispatcher) logReport(assignment *models.Assignment, notificationType string, report DeliveryReport) {
	entry := logrus.WithFields(logrus.Fields{
		"assignment_id": assignment.ID,
		"topic_id":      assignment.TopicID,
		"type":          notificationType,
		"delivered":     len(report.Delivered),
		"skipped":       len(report.Skipped),
		"failed":        len(report.Failures),
	})
	if len(report.Failures) > 0 {
		for _, failure := range report.Failures {
			entry.Errorf("Notification failure for user %d: %v", failure.UserID, failure.Err)
		}
		return
	}
	entry.Info("Assignment notifications dispatched")
}

// Excerpt collapses whitespace and cuts text to at most limit runes
func Excerpt(text string, limit int) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) <= limit {
		return collapsed
	}
	return string(runes[:limit])
}
