package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// List filters accepted in place of a user or group name
const (
	ListAssignedToNobody = "nobody"
	ListAssignedToAnyone = "*"
)

// AssignmentQueryService answers read-only assignment questions
type AssignmentQueryService struct {
	store     *repository.AssignmentRepository
	topicRepo *repository.TopicRepository
	postRepo  *repository.PostRepository
	userRepo  *repository.UserRepository
	groupRepo *repository.GroupRepository
	policy    *Policy
}

func NewAssignmentQueryService(
	store *repository.AssignmentRepository,
	topicRepo *repository.TopicRepository,
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	groupRepo *repository.GroupRepository,
	policy *Policy,
) *AssignmentQueryService {
	return &AssignmentQueryService{
		store:     store,
		topicRepo: topicRepo,
		postRepo:  postRepo,
		userRepo:  userRepo,
		groupRepo: groupRepo,
		policy:    policy,
	}
}

// TopicAssignments returns the topic's direct assignee and the assignees of
// its posts
func (q *AssignmentQueryService) TopicAssignments(ctx context.Context, actor *models.User, topicID uint64) (*models.TopicAssignmentsResponse, error) {
	if err := q.ensureCanView(ctx, actor); err != nil {
		return nil, err
	}
	if _, err := q.topicRepo.GetByID(ctx, topicID); err != nil {
		return nil, notFound(err, "topic %d", topicID)
	}

	assignments, err := q.store.FindActiveByTopic(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments of topic %d: %w", topicID, err)
	}
	responses, err := q.toResponses(ctx, assignments)
	if err != nil {
		return nil, err
	}

	result := &models.TopicAssignmentsResponse{TopicID: topicID}
	for i := range responses {
		if responses[i].TargetType == string(models.TargetTopic) {
			result.AssignedTo = &responses[i]
			continue
		}
		result.IndirectlyAssigned = append(result.IndirectlyAssigned, responses[i])
	}
	return result, nil
}

// UserAssigned lists topics assigned to the user, directly or through one of
// their groups unless directOnly is set. Users may always see their own list.
func (q *AssignmentQueryService) UserAssigned(ctx context.Context, actor *models.User, username string, directOnly bool) ([]models.AssignedTopicResponse, error) {
	user, err := q.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, notFound(err, "user %s", username)
	}

	if actor == nil || actor.ID != user.ID {
		if err := q.ensureCanAssign(ctx, actor); err != nil {
			return nil, err
		}
	}

	groupIDs, err := q.groupRepo.GroupIDsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	topicIDs, err := q.store.TopicIDsAssignedToUser(ctx, user.ID, groupIDs, directOnly)
	if err != nil {
		return nil, err
	}
	return q.assignedTopics(ctx, topicIDs)
}

// GroupAssigned lists topics assigned to the group, or to its members
// unless directOnly is set
func (q *AssignmentQueryService) GroupAssigned(ctx context.Context, actor *models.User, groupName string, directOnly bool) (*models.GroupAssignedResponse, error) {
	group, err := q.groupRepo.GetByName(ctx, groupName)
	if err != nil {
		return nil, notFound(err, "group %s", groupName)
	}
	if err := q.ensureCanAssign(ctx, actor); err != nil {
		return nil, err
	}
	visible, err := q.policy.CanShowAssignedTab(ctx, group)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, fmt.Errorf("%w: group %s has no assigned tab", ErrPermissionDenied, group.Name)
	}

	memberIDs, err := q.groupRepo.MemberIDs(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	topicIDs, err := q.store.TopicIDsAssignedToGroup(ctx, group.ID, memberIDs, directOnly)
	if err != nil {
		return nil, err
	}
	count, err := q.store.CountForGroup(ctx, group.ID, memberIDs)
	if err != nil {
		return nil, err
	}
	topics, err := q.topicRepo.GetByIDs(ctx, topicIDs)
	if err != nil {
		return nil, err
	}

	result := &models.GroupAssignedResponse{
		GroupID:         group.ID,
		Name:            group.Name,
		AssignmentCount: count,
		Topics:          make([]models.TopicResponse, 0, len(topics)),
	}
	for i := range topics {
		result.Topics = append(result.Topics, topicResponse(&topics[i]))
	}
	return result, nil
}

// List returns a page of topics filtered by assignee: "nobody" for open
// topics without an assignment, "*" for any assignment, otherwise a
// username or group name
func (q *AssignmentQueryService) List(ctx context.Context, actor *models.User, assigned string, offset, limit int) ([]models.AssignedTopicResponse, int64, error) {
	if err := q.ensureCanView(ctx, actor); err != nil {
		return nil, 0, err
	}

	assigned = strings.TrimSpace(assigned)
	if strings.EqualFold(assigned, ListAssignedToNobody) {
		topics, total, err := q.topicRepo.ListUnassigned(ctx, offset, limit)
		if err != nil {
			return nil, 0, err
		}
		items := make([]models.AssignedTopicResponse, 0, len(topics))
		for i := range topics {
			items = append(items, models.AssignedTopicResponse{Topic: topicResponse(&topics[i])})
		}
		return items, total, nil
	}

	filter := repository.AssignmentFilter{ActiveOnly: true, Offset: offset, Limit: limit}
	if assigned != "" && assigned != ListAssignedToAnyone {
		assignee, err := q.resolveAssignee(ctx, assigned)
		if err != nil {
			return nil, 0, err
		}
		filter.Assignee = &assignee
	}

	assignments, total, err := q.store.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := q.withTopics(ctx, assignments)
	return items, total, err
}

// ExportRows returns every active assignment, newest first
func (q *AssignmentQueryService) ExportRows(ctx context.Context, actor *models.User) ([]models.AssignmentResponse, error) {
	if err := q.ensureCanAssign(ctx, actor); err != nil {
		return nil, err
	}
	assignments, _, err := q.store.List(ctx, repository.AssignmentFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return q.toResponses(ctx, assignments)
}

// CanExport returns ErrPermissionDenied unless the actor may export
func (q *AssignmentQueryService) CanExport(ctx context.Context, actor *models.User) error {
	return q.ensureCanAssign(ctx, actor)
}

// Describe converts a single assignment for API responses
func (q *AssignmentQueryService) Describe(ctx context.Context, assignment *models.Assignment) (*models.AssignmentResponse, error) {
	responses, err := q.toResponses(ctx, []models.Assignment{*assignment})
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

// AssigneeByName resolves the assignee named in an assign request. A
// username takes precedence over a group name.
func (q *AssignmentQueryService) AssigneeByName(ctx context.Context, username, groupName string) (models.Assignee, error) {
	switch {
	case username != "":
		user, err := q.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return models.Assignee{}, notFound(err, "user %s", username)
		}
		return models.UserAssignee(user.ID), nil
	case groupName != "":
		group, err := q.groupRepo.GetByName(ctx, groupName)
		if err != nil {
			return models.Assignee{}, notFound(err, "group %s", groupName)
		}
		return models.GroupAssignee(group.ID), nil
	}
	return models.Assignee{}, ErrNoAssignee
}

func (q *AssignmentQueryService) resolveAssignee(ctx context.Context, name string) (models.Assignee, error) {
	user, err := q.userRepo.GetByUsername(ctx, name)
	if err == nil {
		return models.UserAssignee(user.ID), nil
	}
	if !isRecordNotFound(err) {
		return models.Assignee{}, err
	}

	group, err := q.groupRepo.GetByName(ctx, name)
	if err != nil {
		return models.Assignee{}, notFound(err, "assignee %s", name)
	}
	return models.GroupAssignee(group.ID), nil
}

func (q *AssignmentQueryService) assignedTopics(ctx context.Context, topicIDs []uint64) ([]models.AssignedTopicResponse, error) {
	items := make([]models.AssignedTopicResponse, 0, len(topicIDs))
	topics, err := q.topicRepo.GetByIDs(ctx, topicIDs)
	if err != nil {
		return nil, err
	}
	for i := range topics {
		items = append(items, models.AssignedTopicResponse{Topic: topicResponse(&topics[i])})
	}
	return items, nil
}

func (q *AssignmentQueryService) withTopics(ctx context.Context, assignments []models.Assignment) ([]models.AssignedTopicResponse, error) {
	responses, err := q.toResponses(ctx, assignments)
	if err != nil {
		return nil, err
	}

	topicIDs := make([]uint64, 0, len(assignments))
	for _, a := range assignments {
		topicIDs = append(topicIDs, a.TopicID)
	}
	topics, err := q.topicRepo.GetByIDs(ctx, topicIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]*models.Topic, len(topics))
	for i := range topics {
		byID[topics[i].ID] = &topics[i]
	}

	items := make([]models.AssignedTopicResponse, 0, len(responses))
	for i := range responses {
		topic, ok := byID[responses[i].TopicID]
		if !ok {
			continue
		}
		items = append(items, models.AssignedTopicResponse{
			Topic:      topicResponse(topic),
			Assignment: &responses[i],
		})
	}
	return items, nil
}

// toResponses converts assignments, loading assignee names, post numbers
// and topic titles in batches
func (q *AssignmentQueryService) toResponses(ctx context.Context, assignments []models.Assignment) ([]models.AssignmentResponse, error) {
	var userIDs, groupIDs, postIDs, topicIDs []uint64
	for _, a := range assignments {
		if a.AssignedToGroup() {
			groupIDs = append(groupIDs, a.AssignedToID)
		} else {
			userIDs = append(userIDs, a.AssignedToID)
		}
		if a.TargetType == models.TargetPost {
			postIDs = append(postIDs, a.TargetID)
		}
		topicIDs = append(topicIDs, a.TopicID)
	}

	users, err := q.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	groups, err := q.groupRepo.GetByIDs(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	posts, err := q.postRepo.GetByIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	topics, err := q.topicRepo.GetByIDs(ctx, topicIDs)
	if err != nil {
		return nil, err
	}
	titles := make(map[uint64]string, len(topics))
	for _, topic := range topics {
		titles[topic.ID] = topic.Title
	}

	responses := make([]models.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		response := models.AssignmentResponse{
			ID:             a.ID,
			TopicID:        a.TopicID,
			TopicTitle:     titles[a.TopicID],
			TargetType:     string(a.TargetType),
			TargetID:       a.TargetID,
			AssignedToType: string(a.AssignedToType),
			AssignedToID:   a.AssignedToID,
			AssignedToName: unknownAssigneeName,
			AssignedByID:   a.AssignedByID,
			Active:         a.Active,
			Note:           a.Note,
			AssignedAt:     a.AssignedAt.UTC().Format(time.RFC3339),
		}
		if a.Status != "" {
			status := a.Status
			response.Status = &status
		}
		if a.AssignedToGroup() {
			if group, ok := groups[a.AssignedToID]; ok {
				response.AssignedToName = group.Name
			}
		} else if user, ok := users[a.AssignedToID]; ok {
			response.AssignedToName = user.Username
		}
		if post, ok := posts[a.TargetID]; ok && a.TargetType == models.TargetPost {
			response.PostNumber = post.PostNumber
		}
		responses = append(responses, response)
	}
	return responses, nil
}

func (q *AssignmentQueryService) ensureCanView(ctx context.Context, actor *models.User) error {
	ok, err := q.policy.CanViewAssignment(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: assignments are not visible", ErrPermissionDenied)
	}
	return nil
}

func (q *AssignmentQueryService) ensureCanAssign(ctx context.Context, actor *models.User) error {
	if actor == nil {
		return fmt.Errorf("%w: login required", ErrPermissionDenied)
	}
	ok, err := q.policy.CanAssign(ctx, actor)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user %d may not assign", ErrPermissionDenied, actor.ID)
	}
	return nil
}

func topicResponse(topic *models.Topic) models.TopicResponse {
	return models.TopicResponse{
		ID:        topic.ID,
		Title:     topic.Title,
		Archetype: topic.Archetype,
		Closed:    topic.Closed,
	}
}
