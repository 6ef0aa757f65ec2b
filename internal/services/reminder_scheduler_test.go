package services

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/dbtest"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

func newReminderEnv(t *testing.T, configure ...func(*config.AssignSettings)) *testEnv {
	t.Helper()
	configure = append([]func(*config.AssignSettings){func(s *config.AssignSettings) {
		s.RemindFrequency = config.RemindDaily
	}}, configure...)
	return newTestEnv(t, configure...)
}

// assignAt stores an assignment of a new topic to userID, made at the given time
func assignAt(t *testing.T, env *testEnv, topic uint64, userID uint64, at time.Time) {
	t.Helper()
	dbtest.CreateTopic(t, env.db, topic, "Topic")
	_, err := env.store.Upsert(env.ctx, &models.Assignment{
		TopicID:        topic,
		TargetType:     models.TargetTopic,
		TargetID:       topic,
		AssignedToType: models.AssigneeUser,
		AssignedToID:   userID,
		AssignedByID:   adminID,
		AssignedAt:     at,
	})
	require.NoError(t, err)
}

func setLastReminded(t *testing.T, env *testEnv, userID uint64, at time.Time) {
	t.Helper()
	require.NoError(t, env.users.UpdateLastRemindedAt(env.ctx, userID, at))
}

func TestReminderThrottling(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))
	assignAt(t, env, 51, samID, testNow.Add(-48*time.Hour))
	setLastReminded(t, env, samID, testNow.Add(-23*time.Hour))

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, 1, report.Candidates)
	assert.Empty(t, report.Enqueued)
	assert.Equal(t, skipRecentlyReminded, report.Skipped[samID])
	assert.Equal(t, int64(0), env.notificationCount(samID, models.NotificationReminder))

	// 25 hours after the last reminder
	env.clock.Advance(2 * time.Hour)
	report = env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, []uint64{samID}, report.Enqueued)
	assert.Equal(t, int64(1), env.notificationCount(samID, models.NotificationReminder))

	user := env.user(samID)
	require.NotNil(t, user.LastRemindedAt)
	assert.True(t, user.LastRemindedAt.Equal(env.clock.Now()))

	// One hour later the user was just reminded
	env.clock.Advance(time.Hour)
	report = env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, skipRecentlyReminded, report.Skipped[samID])
	assert.Equal(t, int64(1), env.notificationCount(samID, models.NotificationReminder))
}

func TestReminderListsOldestAssignments(t *testing.T) {
	env := newReminderEnv(t, func(s *config.AssignSettings) {
		s.ReminderTopicLimit = 2
	})
	assignAt(t, env, 50, samID, testNow.Add(-24*time.Hour))
	assignAt(t, env, 51, samID, testNow.Add(-72*time.Hour))
	assignAt(t, env, 52, samID, testNow.Add(-48*time.Hour))

	sent, err := env.scheduler.RemindUser(env.ctx, samID)
	require.NoError(t, err)
	assert.True(t, sent)

	notifications, err := env.notifications.ListForUser(env.ctx, samID, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	data := notifications[0].Data
	assert.Equal(t, models.MessageKeyReminder, data["message"])
	assert.EqualValues(t, 3, data["assignment_count"])

	items, ok := data["assignments"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.EqualValues(t, 51, items[0].(map[string]interface{})["topic_id"])
	assert.EqualValues(t, 52, items[1].(map[string]interface{})["topic_id"])

	// A second call right away is throttled
	sent, err = env.scheduler.RemindUser(env.ctx, samID)
	require.NoError(t, err)
	assert.False(t, sent)
}

func TestReminderSkipsRecentAssignments(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-2*time.Hour))

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, skipTooRecent, report.Skipped[samID])
}

func TestReminderFrequencyNever(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))

	never := config.RemindNever
	require.NoError(t, env.scheduler.SetFrequency(env.ctx, samID, &never))

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, skipNever, report.Skipped[samID])

	weekly := config.RemindWeekly
	require.NoError(t, env.scheduler.SetFrequency(env.ctx, samID, &weekly))
	report = env.scheduler.RunOnce(env.ctx)
	// The oldest assignment is three days old, less than a week
	assert.Equal(t, skipTooRecent, report.Skipped[samID])

	negative := -5
	assert.ErrorIs(t, env.scheduler.SetFrequency(env.ctx, samID, &negative), ErrInvalidFrequency)
	assert.ErrorIs(t, env.scheduler.SetFrequency(env.ctx, 404, &weekly), ErrNotFound)
}

func TestReminderSkipsSuspendedUsers(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", samID).Update("suspended_till", testNow.Add(time.Hour)).Error)

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, skipInactive, report.Skipped[samID])
}

func TestSnoozedUserIsNotRemindedUntilSnoozeLapses(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))
	setLastReminded(t, env, samID, testNow.Add(-25*time.Hour))

	until, err := env.scheduler.Snooze(env.ctx, samID, 8*60)
	require.NoError(t, err)
	require.NotNil(t, until)
	assert.True(t, until.Equal(testNow.Add(8*time.Hour)))

	report := env.scheduler.RunOnce(env.ctx)
	assert.Empty(t, report.Enqueued)
	assert.Equal(t, skipSnoozed, report.Skipped[samID])

	sent, err := env.scheduler.RemindUser(env.ctx, samID)
	require.NoError(t, err)
	assert.False(t, sent)

	env.clock.Advance(7 * time.Hour)
	report = env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, skipSnoozed, report.Skipped[samID])
	assert.Equal(t, int64(0), env.notificationCount(samID, models.NotificationReminder))

	env.clock.Advance(2 * time.Hour)
	report = env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, []uint64{samID}, report.Enqueued)
	assert.Equal(t, int64(1), env.notificationCount(samID, models.NotificationReminder))
}

func TestSnoozeCanBeCleared(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))

	_, err := env.scheduler.Snooze(env.ctx, samID, 60)
	require.NoError(t, err)
	assert.True(t, env.user(samID).IsSnoozed(env.clock.Now()))

	until, err := env.scheduler.Snooze(env.ctx, samID, 0)
	require.NoError(t, err)
	assert.Nil(t, until)
	assert.Nil(t, env.user(samID).SnoozedUntil)

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, []uint64{samID}, report.Enqueued)

	_, err = env.scheduler.Snooze(env.ctx, samID, -1)
	assert.ErrorIs(t, err, ErrInvalidSnooze)
	_, err = env.scheduler.Snooze(env.ctx, 404, 60)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReminderThresholdIsRecomputedEachRun(t *testing.T) {
	env := newReminderEnv(t, func(s *config.AssignSettings) {
		s.ReminderThreshold = 2
	})
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))

	report := env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, 0, report.Candidates)

	assignAt(t, env, 51, samID, testNow.Add(-72*time.Hour))
	report = env.scheduler.RunOnce(env.ctx)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, []uint64{samID}, report.Enqueued)
}

func TestShouldRemindRespectsWorkingHours(t *testing.T) {
	env := newReminderEnv(t, func(s *config.AssignSettings) {
		s.ReminderRespectWorkingHours = true
	})
	user := &models.User{ID: samID, Active: true}
	oldest := testNow.Add(-72 * time.Hour)

	due, _ := env.scheduler.ShouldRemind(user, oldest, testNow)
	assert.True(t, due)

	saturday := testNow.Add(5 * 24 * time.Hour)
	due, reason := env.scheduler.ShouldRemind(user, oldest, saturday)
	assert.False(t, due)
	assert.Equal(t, skipOutsideHours, reason)

	// 10:00 UTC is 06:00 in New York
	user.Timezone = "America/New_York"
	due, reason = env.scheduler.ShouldRemind(user, oldest, testNow)
	assert.False(t, due)
	assert.Equal(t, skipOutsideHours, reason)

	due, _ = env.scheduler.ShouldRemind(user, oldest, testNow.Add(5*time.Hour))
	assert.True(t, due)
}

func TestReminderLoopRunsOnEachTick(t *testing.T) {
	env := newReminderEnv(t)
	assignAt(t, env, 50, samID, testNow.Add(-72*time.Hour))

	env.scheduler.Start()
	defer env.scheduler.Stop()

	require.NoError(t, env.clock.WaitAdvance(env.settings.ReminderInterval, time.Second, 1))
	require.Eventually(t, func() bool {
		return env.notificationCount(samID, models.NotificationReminder) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
