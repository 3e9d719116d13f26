package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/registry"
)

// deviceResponse is the administrative view of a device. It never carries
// the secret hash.
type deviceResponse struct {
	ID              int64                 `json:"id"`
	UUID            string                `json:"uuid"`
	Name            string                `json:"name"`
	RestaurantID    *int64                `json:"restaurant_id"`
	RestaurantName  string                `json:"restaurant_name,omitempty"`
	IsActive        bool                  `json:"is_active"`
	CanPrint        bool                  `json:"can_print"`
	KeyConfigured   bool                  `json:"key_configured"`
	LastBootAt      *time.Time            `json:"last_boot_at"`
	LastHeartbeatAt *time.Time            `json:"last_heartbeat_at"`
	Config          model.EffectiveConfig `json:"config"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newDeviceResponse(d *model.Device) deviceResponse {
	resp := deviceResponse{
		ID:              d.ID,
		UUID:            d.UUID,
		Name:            d.Name,
		RestaurantID:    d.RestaurantID,
		IsActive:        d.IsActive,
		CanPrint:        d.CanPrint,
		KeyConfigured:   d.SecretHash != "",
		LastBootAt:      d.LastBootAt,
		LastHeartbeatAt: d.LastHeartbeatAt,
		Config:          d.Config.Effective(),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Restaurant != nil {
		resp.RestaurantName = d.Restaurant.Name
	}
	return resp
}

// RegisterDevice handles POST /admin/devices. The raw key is only ever
// returned here and by RotateDeviceKey.
func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registry.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	d, secret, err := h.registry.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"device":     newDeviceResponse(d),
		"device_key": secret,
	})
}

// ListDevices handles GET /admin/devices.
func (h *Handler) ListDevices(c *gin.Context) {
	var restaurantID *int64
	if raw := c.Query("restaurant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.respondError(c, apperr.Validation("request validation failed", map[string]string{
				"restaurant_id": "must be a positive integer",
			}))
			return
		}
		restaurantID = &id
	}

	devices, err := h.registry.List(c.Request.Context(), restaurantID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]deviceResponse, 0, len(devices))
	for i := range devices {
		out = append(out, newDeviceResponse(&devices[i]))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "devices": out})
}

// GetDevice handles GET /admin/devices/:uuid.
func (h *Handler) GetDevice(c *gin.Context) {
	d, err := h.registry.Get(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": newDeviceResponse(d)})
}

// UpdateDevice handles PATCH /admin/devices/:uuid.
func (h *Handler) UpdateDevice(c *gin.Context) {
	var req registry.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	d, err := h.registry.Update(c.Request.Context(), c.Param("uuid"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "device": newDeviceResponse(d)})
}

// RotateDeviceKey handles POST /admin/devices/:uuid/rotate-key.
func (h *Handler) RotateDeviceKey(c *gin.Context) {
	deviceUUID := c.Param("uuid")
	secret, err := h.registry.RotateSecret(c.Request.Context(), deviceUUID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"device_uuid": deviceUUID,
		"device_key":  secret,
	})
}

// PutDeviceConfig handles PUT /admin/devices/:uuid/config.
func (h *Handler) PutDeviceConfig(c *gin.Context) {
	var req registry.ConfigInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	cfg, err := h.registry.UpsertConfig(c.Request.Context(), c.Param("uuid"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})
}

// DeleteDevice handles DELETE /admin/devices/:uuid.
func (h *Handler) DeleteDevice(c *gin.Context) {
	if err := h.registry.Delete(c.Request.Context(), c.Param("uuid")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
