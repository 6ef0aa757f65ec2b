package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// Reminder outcomes, also used as skip reasons
const (
	skipNever            = "never"
	skipInactive         = "inactive"
	skipSnoozed          = "snoozed"
	skipTooRecent        = "too_recent"
	skipRecentlyReminded = "recently_reminded"
	skipOutsideHours     = "outside_working_hours"
	skipBelowThreshold   = "below_threshold"
	skipUnknownUser      = "unknown_user"

	reminderSent     = "sent"
	reminderEnqueued = "enqueued"
	reminderFailed   = "failed"
)

// ReminderRunReport summarizes one reminder pass
type ReminderRunReport struct {
	Candidates int
	Enqueued   []uint64
	Skipped    map[uint64]string
	Failed     map[uint64]error
}

// ReminderScheduler periodically reminds users of their open assignments
type ReminderScheduler struct {
	settings   *config.AssignSettings
	store      *repository.AssignmentRepository
	userRepo   *repository.UserRepository
	dispatcher *NotificationDispatcher
	queue      JobQueue
	clock      clock.Clock
	metrics    *AssignMetrics

	mu       sync.Mutex
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
	runMu    sync.Mutex
}

// SchedulerDeps groups the scheduler's collaborators
type SchedulerDeps struct {
	Settings   *config.AssignSettings
	Store      *repository.AssignmentRepository
	Users      *repository.UserRepository
	Dispatcher *NotificationDispatcher
	Queue      JobQueue
	Clock      clock.Clock
	Metrics    *AssignMetrics
}

func NewReminderScheduler(deps SchedulerDeps) *ReminderScheduler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := deps.Settings.ReminderInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderScheduler{
		settings:   deps.Settings,
		store:      deps.Store,
		userRepo:   deps.Users,
		dispatcher: deps.Dispatcher,
		queue:      deps.Queue,
		clock:      clk,
		metrics:    deps.Metrics,
		interval:   interval,
	}
}

// SetQueue replaces the job queue
func (s *ReminderScheduler) SetQueue(queue JobQueue) {
	s.queue = queue
}

// RegisterJobs registers the remind_user handler on runner
func (s *ReminderScheduler) RegisterJobs(runner *JobRunner) {
	runner.Register(JobRemindUser, func(ctx context.Context, job Job) error {
		if job.UserID == 0 {
			return fmt.Errorf("job %s has no user", job.ID)
		}
		_, err := s.RemindUser(ctx, job.UserID)
		return err
	})
}

// Start starts the reminder loop
func (s *ReminderScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	go s.run(s.stopChan, s.doneChan)
	logrus.Infof("Reminder scheduler started (interval %s)", s.interval)
}

// Stop stops the reminder loop and waits for a running pass to finish
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	stopChan, doneChan := s.stopChan, s.doneChan
	s.stopChan, s.doneChan = nil, nil
	s.mu.Unlock()

	if stopChan == nil {
		return
	}
	close(stopChan)
	<-doneChan
	logrus.Info("Reminder scheduler stopped")
}

// SetInterval sets the time between passes; it applies from the next tick
func (s *ReminderScheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
}

func (s *ReminderScheduler) currentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *ReminderScheduler) run(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stopChan
		cancel()
	}()

	for {
		select {
		case <-s.clock.After(s.currentInterval()):
			report := s.RunOnce(ctx)
			logrus.WithFields(logrus.Fields{
				"candidates": report.Candidates,
				"enqueued":   len(report.Enqueued),
				"skipped":    len(report.Skipped),
				"failed":     len(report.Failed),
			}).Info("Reminder pass completed")
		case <-stopChan:
			return
		}
	}
}

// RunOnce evaluates every user holding assignments and enqueues a reminder
// for those that are due. Candidates are recomputed on every call.
func (s *ReminderScheduler) RunOnce(ctx context.Context) ReminderRunReport {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	report := ReminderRunReport{
		Skipped: make(map[uint64]string),
		Failed:  make(map[uint64]error),
	}

	threshold := s.settings.ReminderThreshold
	if threshold < 1 {
		threshold = 1
	}
	candidates, err := s.store.ReminderCandidates(ctx, threshold)
	if err != nil {
		logrus.Errorf("Failed to load reminder candidates: %v", err)
		return report
	}
	report.Candidates = len(candidates)

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			logrus.Warnf("Reminder pass aborted: %v", ctx.Err())
			return report
		}

		_, due, reason, err := s.due(ctx, candidate.UserID)
		if err != nil {
			report.Failed[candidate.UserID] = err
			s.metrics.reminder(reminderFailed)
			continue
		}
		if !due {
			report.Skipped[candidate.UserID] = reason
			s.metrics.reminder(reason)
			continue
		}

		if err := s.enqueue(ctx, candidate.UserID); err != nil {
			report.Failed[candidate.UserID] = err
			s.metrics.reminder(reminderFailed)
			continue
		}
		report.Enqueued = append(report.Enqueued, candidate.UserID)
		s.metrics.reminder(reminderEnqueued)
	}
	return report
}

func (s *ReminderScheduler) enqueue(ctx context.Context, userID uint64) error {
	if s.queue == nil {
		_, err := s.RemindUser(ctx, userID)
		return err
	}
	job := NewJob(JobRemindUser)
	job.UserID = userID
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue reminder for user %d: %w", userID, err)
	}
	return nil
}

// RemindUser sends one aggregate reminder if the user is still due and
// records the reminder time. It reports whether a reminder was sent.
func (s *ReminderScheduler) RemindUser(ctx context.Context, userID uint64) (bool, error) {
	user, due, reason, err := s.due(ctx, userID)
	if err != nil {
		return false, err
	}
	if !due {
		logrus.Debugf("Reminder for user %d skipped: %s", userID, reason)
		return false, nil
	}

	total, err := s.store.CountActiveForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count assignments of user %d: %w", userID, err)
	}
	oldest, err := s.store.OldestActiveForUser(ctx, userID, s.settings.ReminderTopicLimit)
	if err != nil {
		return false, fmt.Errorf("failed to load assignments of user %d: %w", userID, err)
	}

	if err := s.dispatcher.NotifyReminder(ctx, user, oldest, total); err != nil {
		s.metrics.reminder(reminderFailed)
		return false, err
	}
	if err := s.userRepo.UpdateLastRemindedAt(ctx, userID, s.clock.Now()); err != nil {
		return true, fmt.Errorf("failed to record reminder for user %d: %w", userID, err)
	}

	s.metrics.reminder(reminderSent)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"assignments": total,
	}).Info("Assignment reminder sent")
	return true, nil
}

// SetFrequency stores the user's reminder frequency in minutes. Nil falls
// back to the site default.
func (s *ReminderScheduler) SetFrequency(ctx context.Context, userID uint64, minutes *int) error {
	if minutes != nil && *minutes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrequency, *minutes)
	}
	if err := s.userRepo.SetRemindersFrequency(ctx, userID, minutes); err != nil {
		return notFound(err, "user %d", userID)
	}
	return nil
}

// Snooze pauses the user's reminders for the given number of minutes and
// returns the end of the snooze. Zero minutes ends a running snooze.
func (s *ReminderScheduler) Snooze(ctx context.Context, userID uint64, minutes int) (*time.Time, error) {
	if minutes < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSnooze, minutes)
	}

	var until *time.Time
	if minutes > 0 {
		end := s.clock.Now().Add(time.Duration(minutes) * time.Minute)
		until = &end
	}
	if err := s.userRepo.SetSnoozedUntil(ctx, userID, until); err != nil {
		return nil, notFound(err, "user %d", userID)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"minutes": minutes,
	}).Info("Reminders snoozed")
	return until, nil
}

// EffectiveFrequency returns the user's frequency, or the site default
func (s *ReminderScheduler) EffectiveFrequency(user *models.User) int {
	if user.RemindersFrequency != nil {
		return *user.RemindersFrequency
	}
	return s.settings.RemindFrequency
}

// due loads the user and checks the reminder rules against fresh state
func (s *ReminderScheduler) due(ctx context.Context, userID uint64) (*models.User, bool, string, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if isRecordNotFound(err) {
		return nil, false, skipUnknownUser, nil
	}
	if err != nil {
		return nil, false, "", err
	}

	count, err := s.store.CountActiveForUser(ctx, userID)
	if err != nil {
		return nil, false, "", err
	}
	if count == 0 || count < int64(s.settings.ReminderThreshold) {
		return user, false, skipBelowThreshold, nil
	}

	oldest, err := s.store.OldestActiveForUser(ctx, userID, 1)
	if err != nil {
		return nil, false, "", err
	}
	if len(oldest) == 0 {
		return user, false, skipBelowThreshold, nil
	}

	due, reason := s.ShouldRemind(user, oldest[0].AssignedAt, s.clock.Now())
	return user, due, reason, nil
}

// ShouldRemind decides whether user, whose oldest open assignment dates
// from oldestAssignedAt, is due a reminder at now. The reason is empty
// when the user is due.
func (s *ReminderScheduler) ShouldRemind(user *models.User, oldestAssignedAt, now time.Time) (bool, string) {
	frequency := s.EffectiveFrequency(user)
	if frequency <= config.RemindNever {
		return false, skipNever
	}
	if !user.CanReceiveNotifications(now) {
		return false, skipInactive
	}
	if user.IsSnoozed(now) {
		return false, skipSnoozed
	}

	interval := time.Duration(frequency) * time.Minute
	if now.Sub(oldestAssignedAt) < interval {
		return false, skipTooRecent
	}
	if user.LastRemindedAt != nil && now.Sub(*user.LastRemindedAt) < interval {
		return false, skipRecentlyReminded
	}
	if s.settings.ReminderRespectWorkingHours && !s.inWorkingHours(user, now) {
		return false, skipOutsideHours
	}
	return true, ""
}

// inWorkingHours reports whether now falls on a weekday between the
// configured hours in the user's timezone (UTC when unknown)
func (s *ReminderScheduler) inWorkingHours(user *models.User, now time.Time) bool {
	location := time.UTC
	if user.Timezone != "" {
		if loc, err := time.LoadLocation(user.Timezone); err == nil {
			location = loc
		} else {
			logrus.Debugf("Unknown timezone %q for user %d", user.Timezone, user.ID)
		}
	}

	local := now.In(location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	hour := local.Hour()
	return hour >= s.settings.WorkingHoursStart && hour < s.settings.WorkingHoursEnd
}
