package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/middleware"
	"github.com/onegreenvn/assign-services-backend/internal/models"
	"github.com/onegreenvn/assign-services-backend/internal/services"
	"github.com/onegreenvn/assign-services-backend/internal/services/excel"
	"github.com/onegreenvn/assign-services-backend/internal/utils"
)

// AssignHandler handles HTTP requests for topic and post assignments
type AssignHandler struct {
	assigner  *services.Assigner
	query     *services.AssignmentQueryService
	scheduler *services.ReminderScheduler
	exporter  *excel.AssignmentExporter
	basePath  string
}

func NewAssignHandler(container *services.Container, exporter *excel.AssignmentExporter, basePath string) *AssignHandler {
	return &AssignHandler{
		assigner:  container.Assigner,
		query:     container.Query,
		scheduler: container.Scheduler,
		exporter:  exporter,
		basePath:  basePath,
	}
}

// Assign godoc
// @Summary Assign a topic or post
// @Description Assign a topic or a single post to a user or a group. Assigning the current assignee again only refreshes the assignment.
// @Tags assign
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.AssignRequest true "Assign request"
// @Success 200 {object} models.AssignmentResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/assign/assign [post]
func (h *AssignHandler) Assign(c *gin.Context) {
	var req models.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	target, ok := models.ParseTarget(req.TargetType, req.TargetID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target", "details": "target_type must be Topic or Post"})
		return
	}

	ctx := c.Request.Context()
	assignee, err := h.query.AssigneeByName(ctx, req.Username, req.GroupName)
	if err != nil {
		respondError(c, "Failed to resolve assignee", err)
		return
	}

	assignment, err := h.assigner.Assign(ctx, target, assignee, middleware.CurrentUser(c), services.AssignOptions{
		Note:   req.Note,
		Status: req.Status,
	})
	if err != nil {
		respondError(c, "Failed to assign", err)
		return
	}

	response, err := h.query.Describe(ctx, assignment)
	if err != nil {
		respondError(c, "Failed to load assignment", err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// Unassign godoc
// @Summary Unassign a topic or post
// @Description Remove the active assignment of a topic or post and notify the former assignee
// @Tags assign
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UnassignRequest true "Unassign request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/unassign [put]
func (h *AssignHandler) Unassign(c *gin.Context) {
	var req models.UnassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	target, ok := models.ParseTarget(req.TargetType, req.TargetID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target", "details": "target_type must be Topic or Post"})
		return
	}

	if err := h.assigner.Unassign(c.Request.Context(), target, middleware.CurrentUser(c), services.UnassignOptions{}); err != nil {
		respondError(c, "Failed to unassign", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetTopicAssignments godoc
// @Summary Get the assignments of a topic
// @Description Get the direct assignee of a topic and the assignees of its posts
// @Tags assign
// @Produce json
// @Security BearerAuth
// @Param id path int true "Topic ID"
// @Success 200 {object} models.TopicAssignmentsResponse
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/topics/{id} [get]
func (h *AssignHandler) GetTopicAssignments(c *gin.Context) {
	topicID, err := utils.StringToID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic id"})
		return
	}

	view, err := h.query.TopicAssignments(c.Request.Context(), middleware.CurrentUser(c), topicID)
	if err != nil {
		respondError(c, "Failed to get topic assignments", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetUserAssigned godoc
// @Summary Get topics assigned to a user
// @Description Get topics assigned to a user directly or through one of their groups
// @Tags assign
// @Produce json
// @Security BearerAuth
// @Param username path string true "Username"
// @Param direct query bool false "Only direct assignments"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/users/{username}/assigned [get]
func (h *AssignHandler) GetUserAssigned(c *gin.Context) {
	items, err := h.query.UserAssigned(c.Request.Context(), middleware.CurrentUser(c), c.Param("username"), queryBool(c, "direct"))
	if err != nil {
		respondError(c, "Failed to get assigned topics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": len(items)})
}

// GetGroupAssigned godoc
// @Summary Get topics assigned to a group
// @Description Get topics assigned to a group directly or to one of its members
// @Tags assign
// @Produce json
// @Security BearerAuth
// @Param name path string true "Group name"
// @Param direct query bool false "Only direct assignments"
// @Success 200 {object} models.GroupAssignedResponse
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/groups/{name}/assigned [get]
func (h *AssignHandler) GetGroupAssigned(c *gin.Context) {
	view, err := h.query.GroupAssigned(c.Request.Context(), middleware.CurrentUser(c), c.Param("name"), queryBool(c, "direct"))
	if err != nil {
		respondError(c, "Failed to get group assignments", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListAssigned godoc
// @Summary List assigned topics
// @Description List topics by assignment: "nobody" for unassigned topics, "*" for any assignee, or a username or group name
// @Tags assign
// @Produce json
// @Security BearerAuth
// @Param assigned query string false "nobody, * or a username or group name"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/list [get]
func (h *AssignHandler) ListAssigned(c *gin.Context) {
	page, pageSize := utils.ParsePaginationFromQuery(c.Query("page"), c.Query("limit"))

	items, total, err := h.query.List(c.Request.Context(), middleware.CurrentUser(c), c.Query("assigned"), utils.CalculateOffset(page, pageSize), pageSize)
	if err != nil {
		respondError(c, "Failed to list assignments", err)
		return
	}

	paginationInfo := utils.CalculatePaginationInfo(int(total), page, pageSize)
	c.JSON(http.StatusOK, gin.H{
		"data":         items,
		"total":        total,
		"page":         paginationInfo.Page,
		"limit":        paginationInfo.PageSize,
		"total_pages":  paginationInfo.TotalPages,
		"has_next":     paginationInfo.HasNext,
		"has_previous": paginationInfo.HasPrevious,
	})
}

// ExportAssignments godoc
// @Summary Export active assignments to Excel
// @Description Export every active assignment to an Excel file and redirect to its download URL
// @Tags assign
// @Produce json
// @Security BearerAuth
// @Success 302 {string} string "Redirect to download URL"
// @Failure 403 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/assign/export [get]
func (h *AssignHandler) ExportAssignments(c *gin.Context) {
	rows, err := h.query.ExportRows(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, "Failed to export assignments", err)
		return
	}

	result, err := h.exporter.Export(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	downloadURL := fmt.Sprintf("%s/api/v1/assign/export/%s", h.basePath, result.Filename)
	c.Redirect(http.StatusFound, downloadURL)
}

// DownloadExport godoc
// @Summary Download an assignment export
// @Description Download a previously exported Excel file
// @Tags assign
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param filename path string true "Excel filename"
// @Success 200 {file} binary "Excel file"
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/assign/export/{filename} [get]
func (h *AssignHandler) DownloadExport(c *gin.Context) {
	if err := h.query.CanExport(c.Request.Context(), middleware.CurrentUser(c)); err != nil {
		respondError(c, "Failed to download export", err)
		return
	}

	filename := filepath.Base(c.Param("filename"))
	filePath := filepath.Join(h.exporter.ExportsDir(), filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Cache-Control", "must-revalidate")
	c.FileAttachment(filePath, filename)
}

// UpdateRemindersFrequency godoc
// @Summary Update the reminder frequency
// @Description Set how often, in minutes, the current user is reminded of their assigned topics. 0 disables reminders.
// @Tags assign
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateRemindersFrequencyRequest true "Frequency in minutes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/assign/reminders-frequency [put]
func (h *AssignHandler) UpdateRemindersFrequency(c *gin.Context) {
	var req models.UpdateRemindersFrequencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	if err := h.scheduler.SetFrequency(c.Request.Context(), user.ID, req.Frequency); err != nil {
		respondError(c, "Failed to update reminder frequency", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "frequency": *req.Frequency})
}

// SnoozeReminders godoc
// @Summary Snooze reminders
// @Description Pause the current user's assignment reminders for a number of minutes. 0 ends the snooze.
// @Tags assign
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.SnoozeRemindersRequest true "Snooze length in minutes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/assign/reminders-snooze [put]
func (h *AssignHandler) SnoozeReminders(c *gin.Context) {
	var req models.SnoozeRemindersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "details": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	until, err := h.scheduler.Snooze(c.Request.Context(), user.ID, *req.Minutes)
	if err != nil {
		respondError(c, "Failed to snooze reminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "snoozed_until": until})
}

// respondError maps service errors to status codes
func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrPermissionDenied), errors.Is(err, services.ErrAssignDisabled):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrConcurrentModification):
		status = http.StatusConflict
	case errors.Is(err, services.ErrTooManyAssigns), errors.Is(err, services.ErrAssigneeNotAllowed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrNotAssigned),
		errors.Is(err, services.ErrInvalidTarget),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrNoAssignee),
		errors.Is(err, services.ErrInvalidFrequency),
		errors.Is(err, services.ErrInvalidSnooze),
		errors.Is(err, services.ErrUnknownEvent):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logrus.Errorf("%s: %v", message, err)
	}
	c.JSON(status, gin.H{"error": message, "details": err.Error()})
}

func queryBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(c.Query(key))
	return err == nil && value
}
