package services

import (
	"context"
	"regexp"

	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([\w][\w.\-]*[\w]|[\w])`)

// StaffMentionAssignee assigns a topic to the first assignable user an admin
// mentions in a post
type StaffMentionAssignee struct {
	userRepo   *repository.UserRepository
	authorizer Authorizer
}

func NewStaffMentionAssignee(userRepo *repository.UserRepository, authorizer Authorizer) *StaffMentionAssignee {
	return &StaffMentionAssignee{userRepo: userRepo, authorizer: authorizer}
}

// Resolve implements DefaultAssignee
func (s *StaffMentionAssignee) Resolve(ctx context.Context, post *models.Post) (*models.User, *models.User, error) {
	if post.IsAnnotation() {
		return nil, nil, nil
	}

	author, err := s.userRepo.GetByID(ctx, post.UserID)
	if isRecordNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if !author.Admin {
		return nil, nil, nil
	}

	for _, username := range Mentions(post.Raw) {
		user, err := s.userRepo.GetByUsername(ctx, username)
		if isRecordNotFound(err) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		ok, err := s.authorizer.CanBeAssigned(ctx, user)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return user, author, nil
		}
	}
	return nil, nil, nil
}

// Mentions returns the distinct @usernames in text, in order
func Mentions(text string) []string {
	seen := make(map[string]bool)
	var usernames []string
	for _, match := range mentionPattern.FindAllStringSubmatch(text, -1) {
		if name := match[1]; !seen[name] {
			seen[name] = true
			usernames = append(usernames, name)
		}
	}
	return usernames
}
