// Package session issues, validates and rotates device sessions.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/credential"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/store"
)

// DefaultTTL is the lifetime of a session when none is configured.
const DefaultTTL = 24 * time.Hour

// DeviceContext identifies the authenticated device behind a request.
type DeviceContext struct {
	DeviceID     int64
	DeviceUUID   string
	RestaurantID int64
	SessionID    string
}

// DeviceSummary is the identity returned to a device after login.
type DeviceSummary struct {
	DeviceID       int64  `json:"id"`
	DeviceUUID     string `json:"uuid"`
	Name           string `json:"name"`
	CanPrint       bool   `json:"can_print"`
	RestaurantID   int64  `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Device    DeviceSummary
	Config    model.EffectiveConfig
}

// Manager implements the device session lifecycle.
type Manager struct {
	devices  store.DeviceStore
	sessions store.SessionStore
	hasher   *credential.Hasher
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewManager creates a Manager. A non-positive ttl selects DefaultTTL.
func NewManager(devices store.DeviceStore, sessions store.SessionStore, hasher *credential.Hasher, ttl time.Duration, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		devices:  devices,
		sessions: sessions,
		hasher:   hasher,
		ttl:      ttl,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login authenticates a device by UUID and secret and replaces all of its
// sessions with a single new one.
func (m *Manager) Login(ctx context.Context, deviceUUID, secret string) (*LoginResult, error) {
	device, err := m.devices.FindDeviceByUUID(ctx, deviceUUID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, m.loginFailed(deviceUUID, apperr.ReasonDeviceNotFound, nil)
		}
		return nil, apperr.Internal(err)
	}

	if device.RestaurantID == nil || device.Restaurant == nil {
		return nil, m.loginFailed(deviceUUID, apperr.ReasonNotAssigned, nil)
	}
	if !device.IsActive {
		return nil, m.loginFailed(deviceUUID, apperr.ReasonDeactivated, nil)
	}
	if device.SecretHash == "" {
		return nil, m.loginFailed(deviceUUID, apperr.ReasonNotConfigured, nil)
	}

	ok, err := m.hasher.Verify(secret, device.SecretHash)
	if err != nil || !ok {
		return nil, m.loginFailed(deviceUUID, apperr.ReasonInvalidKey, err)
	}

	if m.hasher.NeedsRehash(device.SecretHash) {
		m.rehash(ctx, device, secret)
	}

	token, err := credential.GenerateSessionToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	now := m.now()
	sess := &model.DeviceSession{
		ID:             ksuid.New().String(),
		DeviceID:       device.ID,
		TokenHash:      credential.HashToken(token),
		ExpiresAt:      now.Add(m.ttl),
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := m.sessions.ReplaceSessions(ctx, sess); err != nil {
		return nil, apperr.Internal(err)
	}

	if err := m.devices.MarkBoot(ctx, device.ID, now); err != nil {
		m.log.Warn().Err(err).Int64("device_id", device.ID).Msg("failed to record device boot")
	}

	m.log.Info().
		Int64("device_id", device.ID).
		Int64("restaurant_id", *device.RestaurantID).
		Str("session_id", sess.ID).
		Msg("device logged in")

	return &LoginResult{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		Device: DeviceSummary{
			DeviceID:       device.ID,
			DeviceUUID:     device.UUID,
			Name:           device.Name,
			CanPrint:       device.CanPrint,
			RestaurantID:   device.Restaurant.ID,
			RestaurantName: device.Restaurant.Name,
		},
		Config: device.Config.Effective(),
	}, nil
}

// rehash upgrades a legacy or outdated hash after a successful verify.
// Failures leave the old hash in place.
func (m *Manager) rehash(ctx context.Context, device *model.Device, secret string) {
	hash, err := m.hasher.Hash(secret)
	if err == nil {
		err = m.devices.SetDeviceSecret(ctx, device.ID, hash)
	}
	if err != nil {
		m.log.Warn().Err(err).Int64("device_id", device.ID).Msg("failed to upgrade device secret hash")
		return
	}
	m.log.Info().Int64("device_id", device.ID).Msg("upgraded device secret hash")
}

func (m *Manager) loginFailed(deviceUUID, reason string, cause error) error {
	m.log.Warn().Err(cause).Str("device_uuid", deviceUUID).Str("reason", reason).Msg("device login rejected")
	return apperr.LoginFailure(reason, cause)
}

// Validate resolves a bearer token to its device. Expired sessions are
// deleted on sight.
func (m *Manager) Validate(ctx context.Context, token string) (*DeviceContext, error) {
	sess, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if err := m.sessions.TouchSession(ctx, sess.ID, now); err != nil {
		m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to touch session")
	}

	return &DeviceContext{
		DeviceID:     sess.DeviceID,
		DeviceUUID:   sess.Device.UUID,
		RestaurantID: *sess.Device.RestaurantID,
		SessionID:    sess.ID,
	}, nil
}

// Refresh issues a new token and expiry on the same session row. The old
// token stops working in the same write.
func (m *Manager) Refresh(ctx context.Context, token string) (string, time.Time, error) {
	sess, err := m.lookup(ctx, token)
	if err != nil {
		return "", time.Time{}, err
	}

	newToken, err := credential.GenerateSessionToken()
	if err != nil {
		return "", time.Time{}, apperr.Internal(err)
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	err = m.sessions.RotateSessionToken(ctx, sess.ID, sess.TokenHash, credential.HashToken(newToken), expiresAt, now)
	if errors.Is(err, store.ErrConflict) {
		return "", time.Time{}, apperr.InvalidSession()
	}
	if err != nil {
		return "", time.Time{}, apperr.Internal(err)
	}

	m.log.Debug().Int64("device_id", sess.DeviceID).Str("session_id", sess.ID).Msg("session refreshed")
	return newToken, expiresAt, nil
}

// Logout deletes a single session.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if err := m.sessions.DeleteSession(ctx, sessionID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// SweepExpired deletes every session past its expiry.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.sessions.DeleteExpiredSessions(ctx, m.now())
}

// lookup returns the live session for token, or an InvalidSession error.
func (m *Manager) lookup(ctx context.Context, token string) (*model.DeviceSession, error) {
	if token == "" {
		return nil, apperr.InvalidSession()
	}

	sess, err := m.sessions.FindSessionByTokenHash(ctx, credential.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.InvalidSession()
		}
		return nil, apperr.Internal(err)
	}

	if !m.now().Before(sess.ExpiresAt) {
		m.drop(ctx, sess, "expired")
		return nil, apperr.InvalidSession()
	}
	if sess.Device == nil || !sess.Device.IsActive || sess.Device.RestaurantID == nil {
		m.drop(ctx, sess, "device unavailable")
		return nil, apperr.InvalidSession()
	}
	return sess, nil
}

func (m *Manager) drop(ctx context.Context, sess *model.DeviceSession, why string) {
	if err := m.sessions.DeleteSession(ctx, sess.ID); err != nil {
		m.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to delete session")
		return
	}
	m.log.Debug().Str("session_id", sess.ID).Int64("device_id", sess.DeviceID).Str("cause", why).Msg("session invalidated")
}
