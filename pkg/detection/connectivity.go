package detection

import (
	"fmt"
	"sort"
	"time"

	"fleetdiag/pkg/models"
)

// connectivitySignals are the capabilities that indicate the device was
// reachable at the event's timestamp.
var connectivitySignals = map[string]bool{
	"connectivity": true,
	"healthStatus": true,
	"ping":         true,
}

// ConnectivityGap reports the largest silence between consecutive
// connectivity signals when it exceeds the gap floor. It cannot tell a
// powered-off device from a quiet one, so confidence is fixed.
type ConnectivityGap struct {
	thresholds Thresholds
}

func NewConnectivityGap(thresholds Thresholds) *ConnectivityGap {
	return &ConnectivityGap{thresholds: thresholds}
}

func (a *ConnectivityGap) Name() string { return "connectivity_gap" }

const gapConfidence = 0.8

func (a *ConnectivityGap) Detect(events []models.DeviceEvent) ([]models.DetectedPattern, error) {
	timestamps := make([]time.Time, 0, len(events))
	for _, event := range events {
		if connectivitySignals[event.Capability] {
			timestamps = append(timestamps, event.Timestamp)
		}
	}
	if len(timestamps) < 2 {
		return nil, nil
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	var largest time.Duration
	gapCount := 0
	for i := 1; i < len(timestamps); i++ {
		delta := timestamps[i].Sub(timestamps[i-1])
		if delta <= a.thresholds.GapFloor {
			continue
		}
		gapCount++
		if delta > largest {
			largest = delta
		}
	}
	if gapCount == 0 {
		return nil, nil
	}

	severity, score := gapSeverity(largest)
	pattern := models.DetectedPattern{
		Type:        models.PatternConnectivityGap,
		Description: fmt.Sprintf("Connectivity gap of %.1f hours detected (%d gaps over threshold)", largest.Hours(), gapCount),
		Occurrences: gapCount,
		Confidence:  gapConfidence,
		Severity:    severity,
		Score:       score,
	}
	return []models.DetectedPattern{pattern}, nil
}

// gapSeverity maps a gap duration to its severity tier and score.
func gapSeverity(gap time.Duration) (models.Severity, float64) {
	switch {
	case gap >= gapCritical:
		return models.SeverityCritical, 1.0
	case gap >= gapHigh:
		return models.SeverityHigh, 0.85
	case gap >= gapMedium:
		return models.SeverityMedium, 0.6
	default:
		return models.SeverityLow, 0.3
	}
}
