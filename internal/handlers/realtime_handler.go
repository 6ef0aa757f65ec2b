package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
	"github.com/onegreenvn/assign-services-backend/internal/middleware"
	"github.com/onegreenvn/assign-services-backend/internal/services"
)

const heartbeatInterval = 30 * time.Second

// RealtimeHandler streams assignment updates over Server-Sent Events
type RealtimeHandler struct {
	sseHub    *services.SSEHub
	groupRepo *repository.GroupRepository
}

func NewRealtimeHandler(sseHub *services.SSEHub, groupRepo *repository.GroupRepository) *RealtimeHandler {
	return &RealtimeHandler{
		sseHub:    sseHub,
		groupRepo: groupRepo,
	}
}

// Stream godoc
// @Summary Stream assignment updates via Server-Sent Events (SSE)
// @Description Stream realtime messages scoped to the current user and their groups. Extra unscoped channels can be requested with a comma separated list.
// @Tags realtime
// @Produce text/event-stream
// @Security BearerAuth
// @Param channels query string false "Comma separated channels, e.g. /topic/42"
// @Success 200 "SSE stream"
// @Router /api/v1/realtime/stream [get]
func (h *RealtimeHandler) Stream(c *gin.Context) {
	user := middleware.CurrentUser(c)

	groupIDs, err := h.groupRepo.GroupIDsForUser(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load groups", "details": err.Error()})
		return
	}

	keys := []string{services.UserKey(user.ID)}
	for _, groupID := range groupIDs {
		keys = append(keys, services.GroupKey(groupID))
	}
	channels := requestedChannels(c.Query("channels"))
	for _, channel := range channels {
		keys = append(keys, services.ChannelKey(channel))
	}

	// Set headers for SSE
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientChan := h.sseHub.RegisterClient(keys...)
	defer h.sseHub.UnregisterClient(clientChan, keys...)

	c.SSEvent("connected", gin.H{
		"user_id":  user.ID,
		"channels": channels,
	})
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Debugf("SSE client disconnected: user %d", user.ID)
			return
		case <-ticker.C:
			h.sseHub.SendHeartbeat(clientChan)
		case message, ok := <-clientChan:
			if !ok {
				return
			}
			if _, err := c.Writer.Write(message); err != nil {
				logrus.Errorf("Failed to write SSE message: %v", err)
				return
			}
			c.Writer.Flush()
		}
	}
}

func requestedChannels(raw string) []string {
	var channels []string
	for _, channel := range strings.Split(raw, ",") {
		if channel = strings.TrimSpace(channel); channel != "" {
			channels = append(channels, channel)
		}
	}
	return channels
}
