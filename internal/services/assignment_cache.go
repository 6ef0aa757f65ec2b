package services

import (
	"context"
	"sync"

	"github.com/onegreenvn/assign-services-backend/internal/models"
)

type assignmentCacheKey struct{}

// assignmentCache memoizes active assignment lookups for one request.
// A nil entry records that the target has no active assignment.
type assignmentCache struct {
	mu      sync.Mutex
	entries map[models.Target]*models.Assignment
}

// WithAssignmentCache returns a context whose AssignedTo lookups are cached
// until the context ends or the target is mutated
func WithAssignmentCache(ctx context.Context) context.Context {
	if cacheFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, assignmentCacheKey{}, &assignmentCache{
		entries: make(map[models.Target]*models.Assignment),
	})
}

func cacheFrom(ctx context.Context) *assignmentCache {
	cache, _ := ctx.Value(assignmentCacheKey{}).(*assignmentCache)
	return cache
}

func (c *assignmentCache) get(target models.Target) (*models.Assignment, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	assignment, ok := c.entries[target]
	return assignment, ok
}

func (c *assignmentCache) put(target models.Target, assignment *models.Assignment) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[target] = assignment
}

func (c *assignmentCache) invalidate(target models.Target) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, target)
}
