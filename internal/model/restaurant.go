package model

import "time"

// Restaurant is owned by the storefront; devices and orders reference it.
type Restaurant struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"size:256;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
