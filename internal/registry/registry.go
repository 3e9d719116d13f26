// Package registry manages device identities on behalf of administrators.
package registry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablet-sync-backend/internal/apperr"
	"tablet-sync-backend/internal/credential"
	"tablet-sync-backend/internal/model"
	"tablet-sync-backend/internal/store"
)

// RegisterInput describes a new device.
type RegisterInput struct {
	Name         string `json:"name" validate:"required,max=128"`
	RestaurantID *int64 `json:"restaurant_id" validate:"omitempty,min=1"`
	CanPrint     bool   `json:"can_print"`
}

// UpdateInput changes selected device attributes. Nil fields are untouched.
type UpdateInput struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=128"`
	RestaurantID    *int64  `json:"restaurant_id" validate:"omitempty,min=1"`
	ClearRestaurant bool    `json:"clear_restaurant"`
	IsActive        *bool   `json:"is_active"`
	CanPrint        *bool   `json:"can_print"`
}

// ConfigInput holds stored configuration overrides. Nil fields fall back to
// the defaults.
type ConfigInput struct {
	PollIntervalSeconds *int    `json:"poll_interval_seconds" validate:"omitempty,min=5,max=300"`
	AutoPrint           *bool   `json:"auto_print"`
	SoundEnabled        *bool   `json:"sound_enabled"`
	SoundVolume         *int    `json:"sound_volume" validate:"omitempty,min=0,max=100"`
	PrintCopies         *int    `json:"print_copies" validate:"omitempty,min=1,max=5"`
	DisplayMode         *string `json:"display_mode" validate:"omitempty,oneof=kanban list grid"`
}

// Registry creates, updates and removes devices.
type Registry struct {
	devices  store.DeviceStore
	hasher   *credential.Hasher
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New creates a Registry.
func New(devices store.DeviceStore, hasher *credential.Hasher, log zerolog.Logger) *Registry {
	v := validator.New()
	v.RegisterTagNameFunc(apperr.JSONTagName)
	return &Registry{
		devices:  devices,
		hasher:   hasher,
		validate: v,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Register creates an active device and returns it with its raw secret.
// The secret is not recoverable afterwards.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*model.Device, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := r.validate.Struct(in); err != nil {
		return nil, "", apperr.FromValidator(err)
	}
	if in.RestaurantID != nil {
		if err := r.ensureRestaurant(ctx, *in.RestaurantID); err != nil {
			return nil, "", err
		}
	}

	secret, hash, err := r.newSecret()
	if err != nil {
		return nil, "", err
	}

	d := &model.Device{
		UUID:         uuid.NewString(),
		Name:         in.Name,
		RestaurantID: in.RestaurantID,
		SecretHash:   hash,
		IsActive:     true,
		CanPrint:     in.CanPrint,
	}
	if err := r.devices.CreateDevice(ctx, d); err != nil {
		return nil, "", apperr.Internal(err)
	}

	r.log.Info().Int64("device_id", d.ID).Str("device_uuid", d.UUID).Msg("device registered")
	return r.reload(ctx, d.UUID, secret)
}

// Get returns a device by UUID.
func (r *Registry) Get(ctx context.Context, deviceUUID string) (*model.Device, error) {
	d, err := r.devices.FindDeviceByUUID(ctx, deviceUUID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("device")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return d, nil
}

// List returns all devices, optionally limited to one restaurant.
func (r *Registry) List(ctx context.Context, restaurantID *int64) ([]model.Device, error) {
	devices, err := r.devices.ListDevices(ctx, restaurantID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return devices, nil
}

// Update applies in to the device. Deactivating or reassigning a device ends
// its sessions.
func (r *Registry) Update(ctx context.Context, deviceUUID string, in UpdateInput) (*model.Device, error) {
	if err := r.validate.Struct(in); err != nil {
		return nil, apperr.FromValidator(err)
	}
	if in.ClearRestaurant && in.RestaurantID != nil {
		return nil, apperr.Validation("request validation failed", map[string]string{
			"clear_restaurant": "cannot be combined with restaurant_id",
		})
	}

	d, err := r.Get(ctx, deviceUUID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.Name != nil {
		fields["name"] = strings.TrimSpace(*in.Name)
	}
	if in.CanPrint != nil {
		fields["can_print"] = *in.CanPrint
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}

	switch {
	case in.ClearRestaurant:
		if d.RestaurantID != nil {
			fields["restaurant_id"] = nil
		}
	case in.RestaurantID != nil:
		if d.RestaurantID == nil || *d.RestaurantID != *in.RestaurantID {
			if err := r.ensureRestaurant(ctx, *in.RestaurantID); err != nil {
				return nil, err
			}
			fields["restaurant_id"] = *in.RestaurantID
		}
	}

	if len(fields) == 0 {
		return d, nil
	}
	if err := r.devices.UpdateDevice(ctx, d.ID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("device")
		}
		return nil, apperr.Internal(err)
	}

	r.log.Info().Int64("device_id", d.ID).Interface("fields", fields).Msg("device updated")
	updated, _, err := r.reload(ctx, deviceUUID, "")
	return updated, err
}

// RotateSecret replaces the device secret and ends every session issued
// under the old one.
func (r *Registry) RotateSecret(ctx context.Context, deviceUUID string) (string, error) {
	d, err := r.Get(ctx, deviceUUID)
	if err != nil {
		return "", err
	}
	secret, hash, err := r.newSecret()
	if err != nil {
		return "", err
	}
	if err := r.devices.SetDeviceSecret(ctx, d.ID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.NotFound("device")
		}
		return "", apperr.Internal(err)
	}
	r.log.Info().Int64("device_id", d.ID).Msg("device secret rotated")
	return secret, nil
}

// Delete removes the device with its sessions and configuration.
func (r *Registry) Delete(ctx context.Context, deviceUUID string) error {
	d, err := r.Get(ctx, deviceUUID)
	if err != nil {
		return err
	}
	if err := r.devices.DeleteDevice(ctx, d.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("device")
		}
		return apperr.Internal(err)
	}
	r.log.Info().Int64("device_id", d.ID).Msg("device deleted")
	return nil
}

// UpsertConfig stores configuration overrides and returns the effective
// configuration.
func (r *Registry) UpsertConfig(ctx context.Context, deviceUUID string, in ConfigInput) (model.EffectiveConfig, error) {
	if err := r.validate.Struct(in); err != nil {
		return model.EffectiveConfig{}, apperr.FromValidator(err)
	}
	d, err := r.Get(ctx, deviceUUID)
	if err != nil {
		return model.EffectiveConfig{}, err
	}

	cfg := &model.DeviceConfig{
		DeviceID:            d.ID,
		PollIntervalSeconds: in.PollIntervalSeconds,
		AutoPrint:           in.AutoPrint,
		SoundEnabled:        in.SoundEnabled,
		SoundVolume:         in.SoundVolume,
		PrintCopies:         in.PrintCopies,
		DisplayMode:         in.DisplayMode,
	}
	if err := r.devices.UpsertDeviceConfig(ctx, cfg); err != nil {
		return model.EffectiveConfig{}, apperr.Internal(err)
	}
	return cfg.Effective(), nil
}

// Heartbeat records that an authenticated device is alive and returns its
// current configuration.
func (r *Registry) Heartbeat(ctx context.Context, deviceID int64) (model.EffectiveConfig, time.Time, error) {
	now := r.now()
	if err := r.devices.MarkHeartbeat(ctx, deviceID, now); err != nil {
		return model.EffectiveConfig{}, time.Time{}, apperr.Internal(err)
	}
	d, err := r.devices.FindDeviceByID(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		return model.EffectiveConfig{}, time.Time{}, apperr.NotFound("device")
	}
	if err != nil {
		return model.EffectiveConfig{}, time.Time{}, apperr.Internal(err)
	}
	return d.Config.Effective(), now, nil
}

func (r *Registry) ensureRestaurant(ctx context.Context, id int64) error {
	_, err := r.devices.FindRestaurant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Validation("request validation failed", map[string]string{
			"restaurant_id": "does not exist",
		})
	}
	if err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (r *Registry) newSecret() (string, string, error) {
	secret, err := credential.GenerateSecret()
	if err != nil {
		return "", "", apperr.Internal(err)
	}
	hash, err := r.hasher.Hash(secret)
	if err != nil {
		return "", "", apperr.Internal(err)
	}
	return secret, hash, nil
}

func (r *Registry) reload(ctx context.Context, deviceUUID, secret string) (*model.Device, string, error) {
	d, err := r.Get(ctx, deviceUUID)
	if err != nil {
		return nil, "", err
	}
	return d, secret, nil
}
