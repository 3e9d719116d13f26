package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/mw"
	"tablet-sync-backend/internal/session"
)

type loginRequest struct {
	DeviceUUID string `json:"device_uuid" binding:"required"`
	DeviceKey  string `json:"device_key" binding:"required"`
}

type loginResponse struct {
	Success      bool                  `json:"success"`
	SessionToken string                `json:"session_token"`
	ExpiresAt    time.Time             `json:"expires_at"`
	Device       session.DeviceSummary `json:"device"`
	Config       model.EffectiveConfig `json:"config"`
}

// Login handles POST /tablet/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.DeviceUUID, req.DeviceKey)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Success:      true,
		SessionToken: res.Token,
		ExpiresAt:    res.ExpiresAt,
		Device:       res.Device,
		Config:       res.Config,
	})
}

// Refresh handles POST /tablet/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	token, expiresAt, err := h.sessions.Refresh(c.Request.Context(), mw.SessionToken(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"session_token": token,
		"expires_at":    expiresAt,
	})
}

// Logout handles POST /tablet/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), mustDevice(c).SessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Heartbeat handles POST /tablet/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	cfg, _, err := h.registry.Heartbeat(c.Request.Context(), mustDevice(c).DeviceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	serverTime, nextPoll := h.pollHints()
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"server_time":  serverTime,
		"next_poll_at": nextPoll,
		"config":       cfg,
	})
}
