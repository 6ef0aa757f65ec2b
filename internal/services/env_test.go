package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/dbtest"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// Monday morning, inside default working hours
var testNow = time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

const (
	adminID    uint64 = 1
	samID      uint64 = 7
	alexID     uint64 = 8
	outsiderID uint64 = 9
	staffID    uint64 = 10
	topicID    uint64 = 42
)

type published struct {
	Channel string
	Payload map[string]interface{}
	Opts    PublishOptions
}

// recordingPublisher keeps every realtime message in memory
type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
}

func (p *recordingPublisher) Publish(channel string, payload interface{}, opts PublishOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, _ := payload.(map[string]interface{})
	p.messages = append(p.messages, published{Channel: channel, Payload: data, Opts: opts})
	return nil
}

func (p *recordingPublisher) channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var channels []string
	for _, m := range p.messages {
		channels = append(channels, m.Channel)
	}
	return channels
}

// failingNotifications fails deliveries to selected users
type failingNotifications struct {
	inner  NotificationStore
	failOn map[uint64]bool
}

func (f *failingNotifications) Create(ctx context.Context, notification *models.Notification) error {
	if f.failOn[notification.UserID] {
		return errors.New("mailbox unavailable")
	}
	return f.inner.Create(ctx, notification)
}

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	clock    *testclock.Clock
	settings *config.AssignSettings

	store         *repository.AssignmentRepository
	topics        *repository.TopicRepository
	posts         *repository.PostRepository
	users         *repository.UserRepository
	groups        *repository.GroupRepository
	notifications *repository.NotificationRepository
	siteSettings  *repository.SiteSettingRepository

	realtime     *recordingPublisher
	runner       *JobRunner
	policy       *Policy
	dispatcher   *NotificationDispatcher
	webhooks     *WebhookNotifier
	assigner     *Assigner
	synchronizer *LifecycleSynchronizer
	scheduler    *ReminderScheduler
	query        *AssignmentQueryService
}

// newTestEnv wires every component against a fresh database holding an
// admin, two staff members (sam, alex), an outsider and topic 42
func newTestEnv(t *testing.T, configure ...func(*config.AssignSettings)) *testEnv {
	t.Helper()

	settings := config.DefaultAssignSettings()
	settings.ReminderRespectWorkingHours = false
	for _, fn := range configure {
		fn(settings)
	}

	env := &testEnv{
		t:        t,
		ctx:      context.Background(),
		db:       dbtest.Open(t),
		clock:    testclock.NewClock(testNow),
		settings: settings,
		realtime: &recordingPublisher{},
	}

	env.store = repository.NewAssignmentRepository(env.db)
	env.store.SetNow(env.clock.Now)
	env.topics = repository.NewTopicRepository(env.db)
	env.posts = repository.NewPostRepository(env.db)
	env.users = repository.NewUserRepository(env.db)
	env.groups = repository.NewGroupRepository(env.db)
	env.notifications = repository.NewNotificationRepository(env.db)
	env.siteSettings = repository.NewSiteSettingRepository(env.db)

	env.runner = NewJobRunner(nil)
	queue := NewInlineJobQueue(env.runner)
	env.policy = NewPolicy(settings, env.groups, env.siteSettings)
	env.dispatcher = NewNotificationDispatcher(DispatcherDeps{
		Settings:      settings,
		Queue:         queue,
		Notifications: env.notifications,
		Users:         env.users,
		Groups:        env.groups,
		Topics:        env.topics,
		Posts:         env.posts,
		Realtime:      env.realtime,
		Clock:         env.clock,
	})
	env.dispatcher.RegisterJobs(env.runner)
	env.webhooks = NewWebhookNotifier(WebhookDeps{
		Settings: settings,
		Queue:    queue,
		Clock:    env.clock,
	})
	env.webhooks.RegisterJobs(env.runner)

	var defaults DefaultAssignee
	if settings.ByStaffMention {
		defaults = NewStaffMentionAssignee(env.users, env.policy)
	}
	env.assigner = NewAssigner(AssignerDeps{
		Settings:   settings,
		Store:      env.store,
		Topics:     env.topics,
		Posts:      env.posts,
		Users:      env.users,
		Groups:     env.groups,
		Authorizer: env.policy,
		Dispatcher: env.dispatcher,
		Webhooks:   env.webhooks,
		Defaults:   defaults,
	})
	env.synchronizer = NewLifecycleSynchronizer(SynchronizerDeps{
		Settings:   settings,
		Assigner:   env.assigner,
		Store:      env.store,
		Posts:      env.posts,
		Groups:     env.groups,
		Users:      env.users,
		Policy:     env.policy,
		Dispatcher: env.dispatcher,
	})
	env.scheduler = NewReminderScheduler(SchedulerDeps{
		Settings:   settings,
		Store:      env.store,
		Users:      env.users,
		Dispatcher: env.dispatcher,
		Queue:      queue,
		Clock:      env.clock,
	})
	env.scheduler.RegisterJobs(env.runner)
	env.query = NewAssignmentQueryService(env.store, env.topics, env.posts, env.users, env.groups, env.policy)

	dbtest.CreateUser(t, env.db, adminID, "admin", true)
	dbtest.CreateUser(t, env.db, samID, "sam", false)
	dbtest.CreateUser(t, env.db, alexID, "alex", false)
	dbtest.CreateUser(t, env.db, outsiderID, "outsider", false)
	dbtest.CreateGroup(t, env.db, staffID, "staff", models.AssignableOnlyAdmins, samID, alexID)
	dbtest.CreateTopic(t, env.db, topicID, "Printer on fire")

	return env
}

func (e *testEnv) user(id uint64) *models.User {
	e.t.Helper()
	user, err := e.users.GetByID(e.ctx, id)
	require.NoError(e.t, err)
	return user
}

func (e *testEnv) assign(target models.Target, userID uint64) *models.Assignment {
	e.t.Helper()
	assignment, err := e.assigner.Assign(e.ctx, target, models.UserAssignee(userID), e.user(adminID), AssignOptions{})
	require.NoError(e.t, err)
	return assignment
}

func (e *testEnv) notificationCount(userID uint64, notificationType string) int64 {
	e.t.Helper()
	count, err := e.notifications.CountByType(e.ctx, userID, notificationType)
	require.NoError(e.t, err)
	return count
}

func (e *testEnv) assignmentRows() []models.Assignment {
	e.t.Helper()
	var rows []models.Assignment
	require.NoError(e.t, e.db.Order("id ASC").Find(&rows).Error)
	return rows
}
