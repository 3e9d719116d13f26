package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tablet-sync-backend/internal/model"
)

// ReplaceSessions deletes every session of s.DeviceID and inserts s, so a
// device holds at most one session once the transaction commits.
func (s *gormStore) ReplaceSessions(ctx context.Context, sess *model.DeviceSession) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", sess.DeviceID).Delete(&model.DeviceSession{}).Error; err != nil {
			return fmt.Errorf("delete sessions for device %d: %w", sess.DeviceID, err)
		}
		if err := tx.Create(sess).Error; err != nil {
			return fmt.Errorf("create session for device %d: %w", sess.DeviceID, err)
		}
		return nil
	})
}

func (s *gormStore) FindSessionByTokenHash(ctx context.Context, tokenHash string) (*model.DeviceSession, error) {
	var sess model.DeviceSession
	err := s.db.WithContext(ctx).
		Preload("Device").
		Preload("Device.Restaurant").
		Where("token_hash = ?", tokenHash).
		First(&sess).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

func (s *gormStore) TouchSession(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&model.DeviceSession{}).Where("id = ?", id).Update("last_activity_at", at).Error
}

// RotateSessionToken swaps the token on an existing row in one conditional
// update. ErrConflict means oldHash no longer matches.
func (s *gormStore) RotateSessionToken(ctx context.Context, id, oldHash, newHash string, expiresAt, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&model.DeviceSession{}).
		Where("id = ? AND token_hash = ?", id, oldHash).
		Updates(map[string]any{
			"token_hash":       newHash,
			"expires_at":       expiresAt,
			"last_activity_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("rotate session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *gormStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.DeviceSession{}).Error
}

func (s *gormStore) DeleteSessionsForDevice(ctx context.Context, deviceID int64) error {
	return s.db.WithContext(ctx).Where("device_id = ?", deviceID).Delete(&model.DeviceSession{}).Error
}

func (s *gormStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.DeviceSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
