package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"fleetdiag/pkg/config"
	"fleetdiag/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect initializes the registry database connection.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Connected to registry database", "component", "Registry")
	return db, nil
}

// GormRegistry serves the registry interface from the devices and
// device_events tables. Every method only SELECTs; the event stream is
// written upstream by the vendor adapters.
type GormRegistry struct {
	db *gorm.DB
}

func NewGormRegistry(db *gorm.DB) *GormRegistry {
	return &GormRegistry{db: db}
}

func (r *GormRegistry) ListDevices(ctx context.Context) ([]*models.Device, error) {
	var devices []*models.Device
	result := r.db.WithContext(ctx).Order("id").Find(&devices)
	return devices, result.Error
}

// GetEvents returns the most recent events for a device, newest first.
// A device with no history yields an empty slice, not an error.
func (r *GormRegistry) GetEvents(ctx context.Context, deviceID string, limit int) ([]models.DeviceEvent, error) {
	var events []models.DeviceEvent
	query := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&events)
	return events, result.Error
}

// GetDeviceHealth derives a health snapshot from the device row and its
// latest battery reading. Absence of a battery capability is reported as
// a nil level, not an error.
func (r *GormRegistry) GetDeviceHealth(ctx context.Context, deviceID string) (*models.DeviceHealth, error) {
	var device models.Device
	if err := r.db.WithContext(ctx).First(&device, "id = ?", deviceID).Error; err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}

	health := &models.DeviceHealth{
		DeviceID: device.ID,
		Online:   device.Online,
	}

	var batteryEvent models.DeviceEvent
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND capability = ?", deviceID, "battery").
		Order("timestamp DESC").
		First(&batteryEvent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return health, nil
		}
		return nil, err
	}

	level, err := strconv.ParseFloat(batteryEvent.Value, 64)
	if err != nil {
		slog.Warn("Skipping unparseable battery reading",
			"component", "Registry", "device_id", deviceID, "value", batteryEvent.Value)
		return health, nil
	}
	health.BatteryLevel = &level
	return health, nil
}
