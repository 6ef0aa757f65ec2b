package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/config"
	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/models"
)

// Authorizer decides who may assign and be assigned
type Authorizer interface {
	CanAssign(ctx context.Context, actor *models.User) (bool, error)
	CanBeAssigned(ctx context.Context, user *models.User) (bool, error)
	CanAssignToGroup(ctx context.Context, actor *models.User, group *models.Group) (bool, error)
}

// Policy is the allow-list based Authorizer. Admins may always assign;
// other users need membership in an allow-listed group.
type Policy struct {
	settings     *config.AssignSettings
	groupRepo    *repository.GroupRepository
	settingsRepo *repository.SiteSettingRepository
	mu           sync.Mutex
}

func NewPolicy(settings *config.AssignSettings, groupRepo *repository.GroupRepository, settingsRepo *repository.SiteSettingRepository) *Policy {
	return &Policy{
		settings:     settings,
		groupRepo:    groupRepo,
		settingsRepo: settingsRepo,
	}
}

// AllowedGroups returns the allow-list entries (group ids or names)
func (p *Policy) AllowedGroups(ctx context.Context) ([]string, error) {
	value, ok, err := p.settingsRepo.Get(ctx, models.SettingAssignAllowedOnGroups)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowed groups: %w", err)
	}
	if !ok {
		return append([]string(nil), p.settings.AllowedOnGroups...), nil
	}
	return splitAllowList(value), nil
}

// CanAssign reports whether actor may assign work
func (p *Policy) CanAssign(ctx context.Context, actor *models.User) (bool, error) {
	if actor == nil {
		return false, nil
	}
	if actor.Admin {
		return true, nil
	}
	return p.inAllowedGroup(ctx, actor.ID)
}

// CanBeAssigned reports whether user may receive assignments
func (p *Policy) CanBeAssigned(ctx context.Context, user *models.User) (bool, error) {
	return p.CanAssign(ctx, user)
}

// CanAssignToGroup checks the group's assignable level for actor
func (p *Policy) CanAssignToGroup(ctx context.Context, actor *models.User, group *models.Group) (bool, error) {
	if actor == nil || group == nil {
		return false, nil
	}

	switch group.AssignableLevel {
	case models.AssignableEveryone:
		return true, nil
	case models.AssignableOnlyAdmins, models.AssignableModsAndAdmins:
		return actor.Admin, nil
	case models.AssignableMembersModsAndAdmins, models.AssignableOwnersModsAndAdmins:
		if actor.Admin {
			return true, nil
		}
		membership, err := p.groupRepo.Membership(ctx, group.ID, actor.ID)
		if isRecordNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if group.AssignableLevel == models.AssignableOwnersModsAndAdmins {
			return membership.Owner, nil
		}
		return true, nil
	default:
		return false, nil
	}
}

// CanViewAssignment reports whether actor may see who a target is assigned to
func (p *Policy) CanViewAssignment(ctx context.Context, actor *models.User) (bool, error) {
	if p.settings.Public {
		return true, nil
	}
	return p.CanAssign(ctx, actor)
}

// CanShowAssignedTab reports whether every member of the group may assign
func (p *Policy) CanShowAssignedTab(ctx context.Context, group *models.Group) (bool, error) {
	members, err := p.groupRepo.Members(ctx, group.ID)
	if err != nil {
		return false, err
	}
	for i := range members {
		ok, err := p.CanAssign(ctx, &members[i])
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// IsAllowedGroup reports whether the group is in the allow-list
func (p *Policy) IsAllowedGroup(ctx context.Context, group *models.Group) (bool, error) {
	allowed, err := p.AllowedGroups(ctx)
	if err != nil {
		return false, err
	}
	return matchesAllowList(allowed, group), nil
}

// RenameAllowedGroup rewrites a name entry of the allow-list
func (p *Policy) RenameAllowedGroup(ctx context.Context, oldName, newName string) error {
	return p.rewriteAllowList(ctx, func(entries []string) []string {
		for i, entry := range entries {
			if strings.EqualFold(entry, oldName) {
				entries[i] = newName
			}
		}
		return entries
	})
}

// RemoveAllowedGroup drops the group's id and name entries from the allow-list
func (p *Policy) RemoveAllowedGroup(ctx context.Context, groupID uint64, name string) error {
	id := strconv.FormatUint(groupID, 10)
	return p.rewriteAllowList(ctx, func(entries []string) []string {
		kept := entries[:0]
		for _, entry := range entries {
			if entry == id || strings.EqualFold(entry, name) {
				continue
			}
			kept = append(kept, entry)
		}
		return kept
	})
}

func (p *Policy) rewriteAllowList(ctx context.Context, rewrite func([]string) []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries, err := p.AllowedGroups(ctx)
	if err != nil {
		return err
	}
	before := strings.Join(entries, "|")
	after := strings.Join(rewrite(entries), "|")
	if before == after {
		return nil
	}

	if err := p.settingsRepo.Set(ctx, models.SettingAssignAllowedOnGroups, after); err != nil {
		return fmt.Errorf("failed to save allowed groups: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"before": before,
		"after":  after,
	}).Info("Assign allowed groups updated")
	return nil
}

func (p *Policy) inAllowedGroup(ctx context.Context, userID uint64) (bool, error) {
	allowed, err := p.AllowedGroups(ctx)
	if err != nil {
		return false, err
	}
	if len(allowed) == 0 {
		return false, nil
	}

	groups, err := p.groupRepo.GroupsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user groups: %w", err)
	}
	for i := range groups {
		if matchesAllowList(allowed, &groups[i]) {
			return true, nil
		}
	}
	return false, nil
}

func matchesAllowList(allowed []string, group *models.Group) bool {
	id := strconv.FormatUint(group.ID, 10)
	for _, entry := range allowed {
		if entry == id || strings.EqualFold(entry, group.Name) {
			return true
		}
	}
	return false
}

func splitAllowList(value string) []string {
	var entries []string
	for _, part := range strings.Split(value, "|") {
		if part = strings.TrimSpace(part); part != "" {
			entries = append(entries, part)
		}
	}
	return entries
}
