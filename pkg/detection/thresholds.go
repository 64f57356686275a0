package detection

import (
	"time"

	"fleetdiag/pkg/config"
)

// Thresholds holds the tunable boundaries of all detection algorithms.
// Defaults match the documented tiers; deployments override them through
// configuration, never by editing algorithm code.
type Thresholds struct {
	// Connectivity gap detection
	GapFloor time.Duration

	// Automation conflict detection
	RapidInterval time.Duration
	Retrigger     time.Duration

	// Event anomaly detection
	FailureCount int
	StormWindow  time.Duration
	StormCount   int

	// Battery degradation detection
	BatteryCritical float64
	BatteryLow      float64
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		GapFloor:        time.Hour,
		RapidInterval:   10 * time.Second,
		Retrigger:       5 * time.Second,
		FailureCount:    3,
		StormWindow:     time.Minute,
		StormCount:      20,
		BatteryCritical: 10.0,
		BatteryLow:      20.0,
	}
}

// ThresholdsFromConfig builds thresholds from loaded configuration.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		GapFloor:        time.Duration(cfg.GapFloorMinutes) * time.Minute,
		RapidInterval:   time.Duration(cfg.RapidIntervalSeconds) * time.Second,
		Retrigger:       time.Duration(cfg.RetriggerSeconds) * time.Second,
		FailureCount:    cfg.FailureCountThreshold,
		StormWindow:     time.Duration(cfg.StormWindowSeconds) * time.Second,
		StormCount:      cfg.StormCountThreshold,
		BatteryCritical: cfg.BatteryCriticalPercent,
		BatteryLow:      cfg.BatteryLowPercent,
	}
}

// Severity tier boundaries for connectivity gaps.
const (
	gapCritical = 24 * time.Hour
	gapHigh     = 12 * time.Hour
	gapMedium   = 6 * time.Hour
)

// Cluster size boundaries for automation conflicts.
const (
	clusterHigh = 10
	clusterMed  = 5
	clusterMin  = 3 // runs shorter than this are treated as ordinary toggling
)

// Quiet hours window: automations firing in this window are almost
// certainly misconfigured, not user-driven.
const (
	quietHourStart = 1
	quietHourEnd   = 5
)
