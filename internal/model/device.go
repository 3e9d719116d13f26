package model

import "time"

// Device represents a physical kitchen or counter terminal.
type Device struct {
	ID              int64  `gorm:"primaryKey"`
	UUID            string `gorm:"column:uuid;size:36;uniqueIndex;not null"` // Pairing identifier, never the numeric ID
	Name            string `gorm:"size:128;not null"`
	RestaurantID    *int64 `gorm:"index"`
	SecretHash      string `gorm:"size:255"`
	IsActive        bool   `gorm:"not null"`
	CanPrint        bool   `gorm:"not null"`
	LastBootAt      *time.Time
	LastHeartbeatAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Associations
	Restaurant *Restaurant     `gorm:"constraint:OnDelete:SET NULL"`
	Config     *DeviceConfig   `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
	Sessions   []DeviceSession `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
}

// DeviceSession is a single live authentication grant for a device.
type DeviceSession struct {
	ID             string    `gorm:"primaryKey;size:27"` // ksuid
	DeviceID       int64     `gorm:"index;not null"`
	TokenHash      string    `gorm:"size:64;uniqueIndex;not null"` // SHA-256 of the opaque token
	ExpiresAt      time.Time `gorm:"index;not null"`
	LastActivityAt time.Time `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`

	// Associations
	Device *Device
}

// DeviceConfig holds administrator-managed preferences. A nil column falls
// back to the hard default.
type DeviceConfig struct {
	DeviceID            int64 `gorm:"primaryKey;autoIncrement:false"`
	PollIntervalSeconds *int
	AutoPrint           *bool
	SoundEnabled        *bool
	SoundVolume         *int
	PrintCopies         *int
	DisplayMode         *string `gorm:"size:32"`
	UpdatedAt           time.Time
}

// Hard defaults applied where a DeviceConfig column is nil.
const (
	DefaultPollIntervalSeconds = 15
	DefaultAutoPrint           = false
	DefaultSoundEnabled        = true
	DefaultSoundVolume         = 80
	DefaultPrintCopies         = 1
	DefaultDisplayMode         = "kanban"
)

// EffectiveConfig is the stored configuration merged over the hard defaults.
type EffectiveConfig struct {
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	AutoPrint           bool   `json:"auto_print"`
	SoundEnabled        bool   `json:"sound_enabled"`
	SoundVolume         int    `json:"sound_volume"`
	PrintCopies         int    `json:"print_copies"`
	DisplayMode         string `json:"display_mode"`
}

// Effective merges c over the defaults. A nil config yields the defaults.
func (c *DeviceConfig) Effective() EffectiveConfig {
	out := EffectiveConfig{
		PollIntervalSeconds: DefaultPollIntervalSeconds,
		AutoPrint:           DefaultAutoPrint,
		SoundEnabled:        DefaultSoundEnabled,
		SoundVolume:         DefaultSoundVolume,
		PrintCopies:         DefaultPrintCopies,
		DisplayMode:         DefaultDisplayMode,
	}
	if c == nil {
		return out
	}
	if c.PollIntervalSeconds != nil {
		out.PollIntervalSeconds = *c.PollIntervalSeconds
	}
	if c.AutoPrint != nil {
		out.AutoPrint = *c.AutoPrint
	}
	if c.SoundEnabled != nil {
		out.SoundEnabled = *c.SoundEnabled
	}
	if c.SoundVolume != nil {
		out.SoundVolume = *c.SoundVolume
	}
	if c.PrintCopies != nil {
		out.PrintCopies = *c.PrintCopies
	}
	if c.DisplayMode != nil {
		out.DisplayMode = *c.DisplayMode
	}
	return out
}
