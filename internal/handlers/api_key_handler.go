package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/assign-services-backend/internal/models"
	"github.com/onegreenvn/assign-services-backend/internal/services/api_key"
)

// APIKeyHandler handles HTTP requests related to API keys
type APIKeyHandler struct {
	apiKeyService *api_key.Service
}

// NewAPIKeyHandler creates a new APIKeyHandler instance
func NewAPIKeyHandler(apiKeyService *api_key.Service) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

// Generate handles POST /api/v1/api-key/generate
// @Summary Generate API key
// @Description Generate a new API key for the authenticated user. The key is only returned once.
// @Tags api-key
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.GeneratedAPIKeyResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/api-key/generate [post]
func (h *APIKeyHandler) Generate(c *gin.Context) {
	userID := c.MustGet("user_id").(uint64)

	key, apiKey, err := h.apiKeyService.GenerateAPIKey(c.Request.Context(), userID)
	if err != nil {
		respondAPIKeyError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.GeneratedAPIKeyResponse{Key: key, APIKey: apiKey})
}

// Get handles GET /api/v1/api-key
// @Summary Get API key
// @Description Get the API key metadata for the authenticated user
// @Tags api-key
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIKey
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/api-key [get]
func (h *APIKeyHandler) Get(c *gin.Context) {
	userID := c.MustGet("user_id").(uint64)

	apiKey, err := h.apiKeyService.GetAPIKeyByUserID(c.Request.Context(), userID)
	if err != nil {
		respondAPIKeyError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiKey)
}

// UpdateStatus handles PUT /api/v1/api-key/status
// @Summary Update API key status
// @Description Enable or disable the API key for the authenticated user
// @Tags api-key
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param status body models.APIKeyStatusRequest true "Status"
// @Success 200 {object} models.APIKey
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/api-key/status [put]
func (h *APIKeyHandler) UpdateStatus(c *gin.Context) {
	userID := c.MustGet("user_id").(uint64)

	var req models.APIKeyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	apiKey, err := h.apiKeyService.UpdateAPIKeyStatus(c.Request.Context(), userID, req.IsActive)
	if err != nil {
		respondAPIKeyError(c, err)
		return
	}

	c.JSON(http.StatusOK, apiKey)
}

// Delete handles DELETE /api/v1/api-key
// @Summary Delete API key
// @Description Delete the API key for the authenticated user
// @Tags api-key
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/api-key [delete]
func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID := c.MustGet("user_id").(uint64)

	if err := h.apiKeyService.DeleteAPIKey(c.Request.Context(), userID); err != nil {
		respondAPIKeyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func respondAPIKeyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, api_key.ErrAPIKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, api_key.ErrUserInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logrus.Errorf("API key request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
