package detection

import (
	"fmt"
	"strconv"

	"fleetdiag/pkg/models"
)

// BatteryDegradation reads the most recent battery reading and flags
// levels below the low threshold. Devices without a battery capability
// yield no finding and no error.
type BatteryDegradation struct {
	thresholds Thresholds
}

func NewBatteryDegradation(thresholds Thresholds) *BatteryDegradation {
	return &BatteryDegradation{thresholds: thresholds}
}

func (a *BatteryDegradation) Name() string { return "battery_degradation" }

const capabilityBattery = "battery"

func (a *BatteryDegradation) Detect(events []models.DeviceEvent) ([]models.DetectedPattern, error) {
	var latest *models.DeviceEvent
	for i := range events {
		event := &events[i]
		if event.Capability != capabilityBattery {
			continue
		}
		if latest == nil || event.Timestamp.After(latest.Timestamp) {
			latest = event
		}
	}
	if latest == nil {
		return nil, nil
	}

	level, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable battery reading %q: %w", latest.Value, err)
	}

	switch {
	case level < a.thresholds.BatteryCritical:
		return []models.DetectedPattern{{
			Type:        models.PatternBatteryDegradation,
			Description: fmt.Sprintf("Battery critically low at %.0f%%, immediate replacement needed", level),
			Occurrences: 1,
			Confidence:  1.0,
			Severity:    models.SeverityCritical,
			Score:       1.0,
		}}, nil
	case level < a.thresholds.BatteryLow:
		return []models.DetectedPattern{{
			Type:        models.PatternBatteryDegradation,
			Description: fmt.Sprintf("Battery low at %.0f%%, plan replacement soon", level),
			Occurrences: 1,
			Confidence:  0.95,
			Severity:    models.SeverityHigh,
			Score:       0.7,
		}}, nil
	}
	return nil, nil
}
