package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/onegreenvn/assign-services-backend/internal/services"
)

// EventsHandler ingests forum lifecycle events
type EventsHandler struct {
	synchronizer *services.LifecycleSynchronizer
}

func NewEventsHandler(synchronizer *services.LifecycleSynchronizer) *EventsHandler {
	return &EventsHandler{synchronizer: synchronizer}
}

// HandleEvent godoc
// @Summary Apply a forum lifecycle event
// @Description Keep assignments in sync with topic, post, message and group changes. Admin only.
// @Tags assign
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.Event true "Lifecycle event"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /api/v1/assign/events [post]
func (h *EventsHandler) HandleEvent(c *gin.Context) {
	if !c.GetBool("is_admin") {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin privileges required"})
		return
	}

	var ev services.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	if err := h.synchronizer.Handle(c.Request.Context(), ev); err != nil {
		respondError(c, "Failed to apply event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "event": ev.Kind})
}
