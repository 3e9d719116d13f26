package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tablet-sync-backend/internal/model"
)

func (s *gormStore) ListOrders(ctx context.Context, restaurantID int64, filter OrderFilter) ([]model.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Order{}).Where("restaurant_id = ?", restaurantID)
	if filter.Status != "" {
		q = q.Where("order_status = ?", filter.Status)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []model.Order
	if err := q.Order("created_at DESC").Order("id DESC").Limit(filter.Limit).Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// FindOrder returns ErrNotFound both for a missing order and for an order of
// another restaurant.
func (s *gormStore) FindOrder(ctx context.Context, restaurantID, orderID int64) (*model.Order, error) {
	var o model.Order
	err := s.db.WithContext(ctx).
		Where("id = ? AND restaurant_id = ?", orderID, restaurantID).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *gormStore) ListStatusHistory(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	var entries []model.OrderStatusHistory
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list history for order %d: %w", orderID, err)
	}
	return entries, nil
}

// TransitionOrder moves an order out of status from with a compare-and-set
// update, then appends entry inside a savepoint. A failed append rolls back
// only the savepoint: the status change still commits and the append error
// is returned as historyErr. ErrConflict means the order left from first.
func (s *gormStore) TransitionOrder(ctx context.Context, restaurantID, orderID int64, from string, fields map[string]any, entry *model.OrderStatusHistory) (historyErr error, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND restaurant_id = ? AND order_status = ?", orderID, restaurantID, from).
			Updates(fields)
		if res.Error != nil {
			return fmt.Errorf("update order %d: %w", orderID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		if entry == nil {
			return nil
		}
		historyErr = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(entry).Error
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return historyErr, nil
}

// AcknowledgeOrder stamps the acknowledgment columns once. The returned bool
// is true when this call performed the write; otherwise the order carries an
// earlier acknowledgment, which is left untouched.
func (s *gormStore) AcknowledgeOrder(ctx context.Context, restaurantID, orderID, deviceID int64, at time.Time) (*model.Order, bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND restaurant_id = ? AND acknowledged_at IS NULL", orderID, restaurantID).
		Updates(map[string]any{
			"acknowledged_at":           at,
			"acknowledged_by_device_id": deviceID,
		})
	if res.Error != nil {
		return nil, false, fmt.Errorf("acknowledge order %d: %w", orderID, res.Error)
	}

	o, err := s.FindOrder(ctx, restaurantID, orderID)
	if err != nil {
		return nil, false, err
	}
	return o, res.RowsAffected > 0, nil
}
