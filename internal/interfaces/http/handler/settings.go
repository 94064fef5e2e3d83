package handler

import (
	"github.com/gin-gonic/gin"

	settingsapp "github.com/schoolerp/backend/internal/application/settings"
)

// SettingsHandler handles school settings API endpoints
type SettingsHandler struct {
	BaseHandler
	settingsService *settingsapp.Service
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsService *settingsapp.Service) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// Get returns the school settings
func (h *SettingsHandler) Get(c *gin.Context) {
	cfg, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cfg)
}

// Initialize creates the settings row on first run
func (h *SettingsHandler) Initialize(c *gin.Context) {
	var req settingsapp.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.settingsService.Initialize(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, cfg)
}

// UpdatePeriod moves the school to a new session and term. Payments
// recorded afterward default to the new period.
func (h *SettingsHandler) UpdatePeriod(c *gin.Context) {
	var req settingsapp.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.settingsService.UpdateCurrentPeriod(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cfg)
}

// Rename changes the school name
func (h *SettingsHandler) Rename(c *gin.Context) {
	var req settingsapp.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cfg, err := h.settingsService.Rename(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, cfg)
}
