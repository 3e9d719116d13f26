package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/orders"
)

type listOrdersQuery struct {
	Status string `form:"status"`
	Since  string `form:"since"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}

type listOrdersResponse struct {
	Success    bool          `json:"success"`
	Orders     []orders.View `json:"orders"`
	TotalCount int64         `json:"total_count"`
	NextPollAt time.Time     `json:"next_poll_at"`
	ServerTime time.Time     `json:"server_time"`
}

// ListOrders handles GET /tablet/orders.
func (h *Handler) ListOrders(c *gin.Context) {
	var q listOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	filter := orders.Filter{Status: strings.ToLower(strings.TrimSpace(q.Status)), Limit: q.Limit}
	if q.Since != "" {
		since, err := time.Parse(time.RFC3339Nano, q.Since)
		if err != nil {
			h.respondError(c, apperr.Validation("request validation failed", map[string]string{
				"since": "must be an RFC 3339 timestamp",
			}))
			return
		}
		since = since.UTC()
		filter.Since = &since
	}

	dc := mustDevice(c)
	page, err := h.orders.List(c.Request.Context(), dc.RestaurantID, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	serverTime, nextPoll := h.pollHints()
	c.JSON(http.StatusOK, listOrdersResponse{
		Success:    true,
		Orders:     page.Orders,
		TotalCount: page.TotalCount,
		NextPollAt: nextPoll,
		ServerTime: serverTime,
	})
}

// GetOrder handles GET /tablet/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := parseOrderID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	detail, err := h.orders.Get(c.Request.Context(), mustDevice(c).RestaurantID, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"order":          detail.Order,
		"status_history": detail.History,
	})
}

// AcknowledgeOrder handles POST /tablet/orders/:id.
func (h *Handler) AcknowledgeOrder(c *gin.Context) {
	id, err := parseOrderID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	dc := mustDevice(c)
	ack, err := h.orders.Acknowledge(c.Request.Context(), dc.RestaurantID, id, dc.DeviceID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"acknowledged_at":      ack.AcknowledgedAt,
		"already_acknowledged": ack.AlreadyAcknowledged,
	})
}

type updateStatusRequest struct {
	Status                string `json:"status" binding:"required"`
	Notes                 string `json:"notes" binding:"max=500"`
	EstimatedReadyMinutes *int   `json:"estimated_ready_minutes"`
}

// UpdateOrderStatus handles PATCH /tablet/orders/:id/status.
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, err := parseOrderID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperr.FromValidator(err))
		return
	}

	dc := mustDevice(c)
	res, err := h.orders.Transition(c.Request.Context(), dc.RestaurantID, id, orders.TransitionRequest{
		Status:                orders.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		Note:                  strings.TrimSpace(req.Notes),
		EstimatedReadyMinutes: req.EstimatedReadyMinutes,
		DeviceID:              dc.DeviceID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order": gin.H{
			"id":              res.OrderID,
			"previous_status": res.PreviousStatus,
			"current_status":  res.NewStatus,
		},
		"status_history": res.History,
	})
}
