package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/mw"
	"tablet-sync-backend/internal/orders"
	"tablet-sync-backend/internal/registry"
	"tablet-sync-backend/internal/session"
	"tablet-sync-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sessions *session.Manager
	registry *registry.Registry
	orders   *orders.Service
	store    store.Store
	nextPoll time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(sessions *session.Manager, reg *registry.Registry, ord *orders.Service, s store.Store, nextPoll time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		registry: reg,
		orders:   ord,
		store:    s,
		nextPoll: nextPoll,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for server_time hints.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// respondError writes err and, for internal failures, logs the cause.
func (h *Handler) respondError(c *gin.Context, err error) {
	if e, ok := apperr.As(err); !ok || e.Kind == apperr.KindInternal {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	mw.Abort(c, err)
}

// pollHints returns server_time and next_poll_at.
func (h *Handler) pollHints() (time.Time, time.Time) {
	now := h.now()
	return now, now.Add(h.nextPoll)
}

func parseOrderID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid order id", map[string]string{"id": "must be a positive integer"})
	}
	return id, nil
}

func mustDevice(c *gin.Context) *session.DeviceContext {
	dc, ok := mw.Device(c)
	if !ok {
		panic("device route registered without DeviceAuth")
	}
	return dc
}
