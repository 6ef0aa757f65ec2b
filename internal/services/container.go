package services

import (
	"github.com/juju/clock"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/services/api_key"
)

// Container holds the wired assignment components shared by the router and
// the background workers
type Container struct {
	Settings *config.AssignSettings
	Metrics  *AssignMetrics
	Runner   *JobRunner

	Store  *repository.AssignmentRepository
	Topics *repository.TopicRepository
	Posts  *repository.PostRepository
	Users  *repository.UserRepository
	Groups *repository.GroupRepository

	Policy       *Policy
	Dispatcher   *NotificationDispatcher
	Webhooks     *WebhookNotifier
	Assigner     *Assigner
	Synchronizer *LifecycleSynchronizer
	Scheduler    *ReminderScheduler
	Query        *AssignmentQueryService
	APIKeys      *api_key.Service
}

// ContainerOptions carries the pieces that differ between production and tests
type ContainerOptions struct {
	Realtime RealtimePublisher
	Clock    clock.Clock
	Metrics  *AssignMetrics
}

// NewContainer wires every component on db. Jobs run inline until UseQueue
// installs a broker-backed queue.
func NewContainer(db *gorm.DB, settings *config.AssignSettings, opts ContainerOptions) *Container {
	c := &Container{
		Settings: settings,
		Metrics:  opts.Metrics,
		Runner:   NewJobRunner(opts.Metrics),
		Store:    repository.NewAssignmentRepository(db),
		Topics:   repository.NewTopicRepository(db),
		Posts:    repository.NewPostRepository(db),
		Users:    repository.NewUserRepository(db),
		Groups:   repository.NewGroupRepository(db),
	}
	c.Store.SetTimeout(settings.StoreTimeout)
	if opts.Clock != nil {
		c.Store.SetNow(opts.Clock.Now)
	}

	queue := NewInlineJobQueue(c.Runner)
	c.Policy = NewPolicy(settings, c.Groups, repository.NewSiteSettingRepository(db))
	c.Dispatcher = NewNotificationDispatcher(DispatcherDeps{
		Settings:      settings,
		Queue:         queue,
		Notifications: repository.NewNotificationRepository(db),
		Users:         c.Users,
		Groups:        c.Groups,
		Topics:        c.Topics,
		Posts:         c.Posts,
		Realtime:      opts.Realtime,
		Clock:         opts.Clock,
		Metrics:       opts.Metrics,
	})
	c.Dispatcher.RegisterJobs(c.Runner)
	c.Webhooks = NewWebhookNotifier(WebhookDeps{
		Settings: settings,
		Queue:    queue,
		Clock:    opts.Clock,
		Metrics:  opts.Metrics,
	})
	c.Webhooks.RegisterJobs(c.Runner)

	var defaults DefaultAssignee
	if settings.ByStaffMention {
		defaults = NewStaffMentionAssignee(c.Users, c.Policy)
	}
	c.Assigner = NewAssigner(AssignerDeps{
		Settings:   settings,
		Store:      c.Store,
		Topics:     c.Topics,
		Posts:      c.Posts,
		Users:      c.Users,
		Groups:     c.Groups,
		Authorizer: c.Policy,
		Dispatcher: c.Dispatcher,
		Webhooks:   c.Webhooks,
		Defaults:   defaults,
		Metrics:    opts.Metrics,
	})
	c.Synchronizer = NewLifecycleSynchronizer(SynchronizerDeps{
		Settings:   settings,
		Assigner:   c.Assigner,
		Store:      c.Store,
		Posts:      c.Posts,
		Groups:     c.Groups,
		Users:      c.Users,
		Policy:     c.Policy,
		Dispatcher: c.Dispatcher,
		Metrics:    opts.Metrics,
	})
	c.Scheduler = NewReminderScheduler(SchedulerDeps{
		Settings:   settings,
		Store:      c.Store,
		Users:      c.Users,
		Dispatcher: c.Dispatcher,
		Queue:      queue,
		Clock:      opts.Clock,
		Metrics:    opts.Metrics,
	})
	c.Scheduler.RegisterJobs(c.Runner)
	c.Query = NewAssignmentQueryService(c.Store, c.Topics, c.Posts, c.Users, c.Groups, c.Policy)
	c.APIKeys = api_key.NewService(db, opts.Clock)

	return c
}

// UseQueue routes notification, webhook and reminder jobs through queue
func (c *Container) UseQueue(queue JobQueue) {
	c.Dispatcher.SetQueue(queue)
	c.Webhooks.SetQueue(queue)
	c.Scheduler.SetQueue(queue)
}
