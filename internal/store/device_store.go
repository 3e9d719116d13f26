package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tablet-sync-backend/internal/model"
)

func (s *gormStore) CreateDevice(ctx context.Context, d *model.Device) error {
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("create device: %w", err)
	}
	return nil
}

func (s *gormStore) FindDeviceByUUID(ctx context.Context, uuid string) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).
		Preload("Restaurant").
		Preload("Config").
		Where("uuid = ?", uuid).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *gormStore) FindDeviceByID(ctx context.Context, id int64) (*model.Device, error) {
	var d model.Device
	err := s.db.WithContext(ctx).
		Preload("Restaurant").
		Preload("Config").
		First(&d, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (s *gormStore) ListDevices(ctx context.Context, restaurantID *int64) ([]model.Device, error) {
	q := s.db.WithContext(ctx).Preload("Restaurant").Preload("Config").Order("id")
	if restaurantID != nil {
		q = q.Where("restaurant_id = ?", *restaurantID)
	}
	var devices []model.Device
	if err := q.Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// UpdateDevice applies fields and, when the device is being deactivated or
// moved to another restaurant, drops its sessions in the same transaction.
func (s *gormStore) UpdateDevice(ctx context.Context, id int64, fields map[string]any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Device{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update device %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		_, reassigned := fields["restaurant_id"]
		if active, ok := fields["is_active"].(bool); reassigned || (ok && !active) {
			if err := tx.Where("device_id = ?", id).Delete(&model.DeviceSession{}).Error; err != nil {
				return fmt.Errorf("drop sessions for device %d: %w", id, err)
			}
		}
		return nil
	})
}

// SetDeviceSecret stores a new secret hash and invalidates every session
// issued under the old one.
func (s *gormStore) SetDeviceSecret(ctx context.Context, id int64, hash string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Device{}).Where("id = ?", id).Update("secret_hash", hash)
		if res.Error != nil {
			return fmt.Errorf("set secret for device %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("device_id = ?", id).Delete(&model.DeviceSession{}).Error; err != nil {
			return fmt.Errorf("drop sessions for device %d: %w", id, err)
		}
		return nil
	})
}

func (s *gormStore) DeleteDevice(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&model.DeviceSession{}).Error; err != nil {
			return fmt.Errorf("delete sessions for device %d: %w", id, err)
		}
		if err := tx.Where("device_id = ?", id).Delete(&model.DeviceConfig{}).Error; err != nil {
			return fmt.Errorf("delete config for device %d: %w", id, err)
		}
		res := tx.Delete(&model.Device{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete device %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *gormStore) MarkBoot(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).Update("last_boot_at", at).Error
}

func (s *gormStore) MarkHeartbeat(ctx context.Context, id int64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", id).Update("last_heartbeat_at", at).Error
}

func (s *gormStore) UpsertDeviceConfig(ctx context.Context, cfg *model.DeviceConfig) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"poll_interval_seconds", "auto_print", "sound_enabled", "sound_volume", "print_copies", "display_mode", "updated_at"}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("upsert config for device %d: %w", cfg.DeviceID, err)
	}
	return nil
}

func (s *gormStore) FindRestaurant(ctx context.Context, id int64) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}
