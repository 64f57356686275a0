package models

import (
	"time"
)

// Device represents the devices table of the registry.
type Device struct {
	ID        string    `gorm:"primaryKey" json:"id" binding:"required"`
	Name      string    `gorm:"not null" json:"name" binding:"required"`
	Vendor    string    `json:"vendor"`
	Online    bool      `gorm:"default:true" json:"online"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// DeviceEvent represents the device_events table: one observed state
// transition or signal from a device. The diagnostic engine only ever
// reads these rows; they are written upstream by the vendor adapters.
type DeviceEvent struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID   string    `gorm:"not null;index" json:"device_id" binding:"required"`
	Capability string    `gorm:"not null" json:"capability" binding:"required"`
	Value      string    `json:"value"`
	Outcome    string    `json:"outcome"` // "success", "failure" or empty for plain state changes
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
}

// DeviceHealth is the registry's health snapshot for one device.
// BatteryLevel is nil for devices without a battery capability.
type DeviceHealth struct {
	DeviceID     string   `json:"device_id"`
	Online       bool     `json:"online"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
}

// TableName overrides the default table name logic
func (Device) TableName() string      { return "devices" }
func (DeviceEvent) TableName() string { return "device_events" }
