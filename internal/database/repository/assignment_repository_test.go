package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/database/dbtest"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

type AssignmentRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo *AssignmentRepository
	now  time.Time
	ctx  context.Context
}

func (s *AssignmentRepositoryTestSuite) SetupTest() {
	s.db = dbtest.Open(s.T())
	s.repo = NewAssignmentRepository(s.db)
	s.now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	s.repo.SetNow(func() time.Time { return s.now })
	s.ctx = context.Background()

	dbtest.CreateUser(s.T(), s.db, 7, "sam", false)
	dbtest.CreateUser(s.T(), s.db, 8, "alex", false)
	dbtest.CreateTopic(s.T(), s.db, 42, "Printer on fire")
}

func (s *AssignmentRepositoryTestSuite) assignment(target models.Target, userID uint64) *models.Assignment {
	return &models.Assignment{
		TopicID:        42,
		TargetType:     target.Type,
		TargetID:       target.ID,
		AssignedToType: models.AssigneeUser,
		AssignedToID:   userID,
		AssignedByID:   1,
	}
}

func (s *AssignmentRepositoryTestSuite) TestUpsertInsertsThenUpdatesInPlace() {
	target := models.TopicTarget(42)

	previous, err := s.repo.Upsert(s.ctx, s.assignment(target, 7))
	s.Require().NoError(err)
	s.Nil(previous)

	first, err := s.repo.FindActive(s.ctx, target)
	s.Require().NoError(err)
	s.Equal(uint64(7), first.AssignedToID)
	s.True(first.AssignedAt.Equal(s.now))

	s.now = s.now.Add(time.Hour)
	reassigned := s.assignment(target, 8)
	previous, err = s.repo.Upsert(s.ctx, reassigned)
	s.Require().NoError(err)
	s.Require().NotNil(previous)
	s.Equal(uint64(7), previous.AssignedToID)
	s.Equal(first.ID, reassigned.ID)
	s.Equal(uint64(8), reassigned.AssignedToID)
	s.True(reassigned.AssignedAt.Equal(s.now))

	var count int64
	s.Require().NoError(s.db.Model(&models.Assignment{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *AssignmentRepositoryTestSuite) TestUpsertSameAssigneeKeepsAssignedAt() {
	target := models.TopicTarget(42)
	_, err := s.repo.Upsert(s.ctx, s.assignment(target, 7))
	s.Require().NoError(err)
	assignedAt := s.now

	s.now = s.now.Add(2 * time.Hour)
	again := s.assignment(target, 7)
	again.AssignedByID = 9
	previous, err := s.repo.Upsert(s.ctx, again)
	s.Require().NoError(err)
	s.Require().NotNil(previous)
	s.True(previous.Active)
	s.Equal(uint64(9), again.AssignedByID)
	s.True(again.AssignedAt.Equal(assignedAt))
}

func (s *AssignmentRepositoryTestSuite) TestUpsertReusesInactiveRow() {
	target := models.TopicTarget(42)
	a := s.assignment(target, 7)
	_, err := s.repo.Upsert(s.ctx, a)
	s.Require().NoError(err)

	changed, err := s.repo.Deactivate(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(changed)

	b := s.assignment(target, 8)
	previous, err := s.repo.Upsert(s.ctx, b)
	s.Require().NoError(err)
	s.Require().NotNil(previous)
	s.False(previous.Active)
	s.Equal(a.ID, b.ID)
	s.True(b.Active)
}

func (s *AssignmentRepositoryTestSuite) TestActiveTargetIndexRejectsSecondActiveRow() {
	target := models.TopicTarget(42)
	_, err := s.repo.Upsert(s.ctx, s.assignment(target, 7))
	s.Require().NoError(err)

	duplicate := s.assignment(target, 8)
	duplicate.Active = true
	duplicate.AssignedAt = s.now
	err = s.db.Create(duplicate).Error
	s.True(errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func (s *AssignmentRepositoryTestSuite) TestDeactivateAndReactivateAreGuarded() {
	a := s.assignment(models.TopicTarget(42), 7)
	_, err := s.repo.Upsert(s.ctx, a)
	s.Require().NoError(err)

	changed, err := s.repo.Reactivate(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(changed)

	changed, err = s.repo.Deactivate(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(changed)

	changed, err = s.repo.Deactivate(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(changed)

	s.now = s.now.Add(48 * time.Hour)
	changed, err = s.repo.Reactivate(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(changed)

	found, err := s.repo.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(found.Active)
	s.True(found.AssignedAt.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
}

func (s *AssignmentRepositoryTestSuite) TestReactivateForTopicSkipsDeletedPosts() {
	live := dbtest.CreatePost(s.T(), s.db, 501, 42, 2, "live reply")
	gone := dbtest.CreatePost(s.T(), s.db, 502, 42, 3, "deleted reply")

	for _, target := range []models.Target{models.TopicTarget(42), models.PostTarget(live.ID), models.PostTarget(gone.ID)} {
		a := s.assignment(target, 7)
		_, err := s.repo.Upsert(s.ctx, a)
		s.Require().NoError(err)
	}

	deactivated, err := s.repo.DeactivateForTopic(s.ctx, 42)
	s.Require().NoError(err)
	s.Len(deactivated, 3)

	dbtest.DestroyPost(s.T(), s.db, gone.ID)

	reactivated, err := s.repo.ReactivateForTopic(s.ctx, 42)
	s.Require().NoError(err)
	s.Len(reactivated, 2)

	_, err = s.repo.FindActive(s.ctx, models.PostTarget(gone.ID))
	s.ErrorIs(err, gorm.ErrRecordNotFound)

	again, err := s.repo.ReactivateForTopic(s.ctx, 42)
	s.Require().NoError(err)
	s.Empty(again)
}

func (s *AssignmentRepositoryTestSuite) TestReactivateForTopicSkipsTargetsAlreadyActive() {
	reply := dbtest.CreatePost(s.T(), s.db, 501, 42, 2, "reply")

	stale := s.assignment(models.TopicTarget(42), 7)
	stale.AssignedAt = s.now
	s.Require().NoError(s.db.Create(stale).Error)
	staleReply := s.assignment(models.PostTarget(reply.ID), 7)
	staleReply.AssignedAt = s.now
	s.Require().NoError(s.db.Create(staleReply).Error)

	current := s.assignment(models.TopicTarget(42), 8)
	current.Active = true
	current.AssignedAt = s.now
	s.Require().NoError(s.db.Create(current).Error)

	reactivated, err := s.repo.ReactivateForTopic(s.ctx, 42)
	s.Require().NoError(err)
	s.Require().Len(reactivated, 1)
	s.Equal(staleReply.ID, reactivated[0].ID)

	active, err := s.repo.FindActive(s.ctx, models.TopicTarget(42))
	s.Require().NoError(err)
	s.Equal(current.ID, active.ID)
	s.Equal(uint64(8), active.AssignedToID)

	found, err := s.repo.FindByID(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.False(found.Active)
}

func (s *AssignmentRepositoryTestSuite) TestMigrateTargetRetargetsToTopic() {
	dbtest.CreateTopic(s.T(), s.db, 43, "Destination")
	post := dbtest.CreatePost(s.T(), s.db, 601, 42, 2, "moved reply")
	a := s.assignment(models.PostTarget(post.ID), 7)
	_, err := s.repo.Upsert(s.ctx, a)
	s.Require().NoError(err)

	topicTarget := models.TopicTarget(43)
	s.Require().NoError(s.repo.MigrateTarget(s.ctx, a.ID, 43, &topicTarget))

	found, err := s.repo.FindActive(s.ctx, topicTarget)
	s.Require().NoError(err)
	s.Equal(a.ID, found.ID)
	s.Equal(uint64(43), found.TopicID)
}

func (s *AssignmentRepositoryTestSuite) TestReminderCandidatesAndOldest() {
	dbtest.CreateTopic(s.T(), s.db, 43, "Second")
	dbtest.CreateTopic(s.T(), s.db, 44, "Third")

	for i, topicID := range []uint64{42, 43, 44} {
		s.now = time.Date(2024, 3, 1+i, 10, 0, 0, 0, time.UTC)
		a := s.assignment(models.TopicTarget(topicID), 7)
		a.TopicID = topicID
		_, err := s.repo.Upsert(s.ctx, a)
		s.Require().NoError(err)
	}
	other := s.assignment(models.PostTarget(42001), 8)
	_, err := s.repo.Upsert(s.ctx, other)
	s.Require().NoError(err)

	candidates, err := s.repo.ReminderCandidates(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal([]ReminderCandidate{{UserID: 7, Count: 3}}, candidates)

	oldest, err := s.repo.OldestActiveForUser(s.ctx, 7, 2)
	s.Require().NoError(err)
	s.Require().Len(oldest, 2)
	s.Equal(uint64(42), oldest[0].TopicID)
	s.Equal(uint64(43), oldest[1].TopicID)

	count, err := s.repo.CountActiveForUser(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *AssignmentRepositoryTestSuite) TestTopicIDsAssignedThroughGroups() {
	dbtest.CreateGroup(s.T(), s.db, 3, "support", models.AssignableEveryone, 7)
	dbtest.CreateTopic(s.T(), s.db, 43, "Group work")

	_, err := s.repo.Upsert(s.ctx, s.assignment(models.TopicTarget(42), 7))
	s.Require().NoError(err)
	groupAssignment := &models.Assignment{
		TopicID:        43,
		TargetType:     models.TargetTopic,
		TargetID:       43,
		AssignedToType: models.AssigneeGroup,
		AssignedToID:   3,
		AssignedByID:   1,
	}
	_, err = s.repo.Upsert(s.ctx, groupAssignment)
	s.Require().NoError(err)

	direct, err := s.repo.TopicIDsAssignedToUser(s.ctx, 7, []uint64{3}, true)
	s.Require().NoError(err)
	s.Equal([]uint64{42}, direct)

	all, err := s.repo.TopicIDsAssignedToUser(s.ctx, 7, []uint64{3}, false)
	s.Require().NoError(err)
	s.Equal([]uint64{42, 43}, all)

	count, err := s.repo.CountForGroup(s.ctx, 3, []uint64{7})
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	groupOnly, err := s.repo.TopicIDsAssignedToGroup(s.ctx, 3, []uint64{7}, true)
	s.Require().NoError(err)
	s.Equal([]uint64{43}, groupOnly)
}

func (s *AssignmentRepositoryTestSuite) TestListFiltersByAssignee() {
	dbtest.CreateTopic(s.T(), s.db, 43, "Second")
	_, err := s.repo.Upsert(s.ctx, s.assignment(models.TopicTarget(42), 7))
	s.Require().NoError(err)
	b := s.assignment(models.TopicTarget(43), 8)
	b.TopicID = 43
	_, err = s.repo.Upsert(s.ctx, b)
	s.Require().NoError(err)

	assignee := models.UserAssignee(8)
	list, total, err := s.repo.List(s.ctx, AssignmentFilter{Assignee: &assignee, ActiveOnly: true})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(list, 1)
	s.Equal(uint64(43), list[0].TopicID)

	unassigned, total, err := NewTopicRepository(s.db).ListUnassigned(s.ctx, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(0), total)
	s.Empty(unassigned)
}

func (s *AssignmentRepositoryTestSuite) TestCanceledContextAbortsStoreCalls() {
	s.repo.SetTimeout(time.Second)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.repo.FindActive(ctx, models.TopicTarget(42))
	s.Error(err)
}

func TestAssignmentRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(AssignmentRepositoryTestSuite))
}
