package detection

import (
	"fmt"
	"sort"

	"fleetdiag/pkg/models"
)

// EventAnomaly runs two independent checks over the event window:
// repeated command failures on one capability, and event storms where the
// total rate inside a sliding window exceeds the storm threshold. Both
// checks may fire for the same device; their findings are not merged.
type EventAnomaly struct {
	thresholds Thresholds
}

func NewEventAnomaly(thresholds Thresholds) *EventAnomaly {
	return &EventAnomaly{thresholds: thresholds}
}

func (a *EventAnomaly) Name() string { return "event_anomaly" }

const (
	failureConfidence = 0.9
	failureScore      = 0.8
	stormConfidence   = 0.95
	stormScore        = 0.9

	outcomeFailure = "failure"
)

func (a *EventAnomaly) Detect(events []models.DeviceEvent) ([]models.DetectedPattern, error) {
	patterns := a.detectRepeatedFailures(events)
	if storm := a.detectEventStorm(events); storm != nil {
		patterns = append(patterns, *storm)
	}
	return patterns, nil
}

// detectRepeatedFailures flags capabilities whose failure count exceeds
// the threshold within the window.
func (a *EventAnomaly) detectRepeatedFailures(events []models.DeviceEvent) []models.DetectedPattern {
	failures := make(map[string]int)
	for _, event := range events {
		if event.Outcome == outcomeFailure {
			failures[event.Capability]++
		}
	}

	capabilities := make([]string, 0, len(failures))
	for capability, count := range failures {
		if count > a.thresholds.FailureCount {
			capabilities = append(capabilities, capability)
		}
	}
	sort.Strings(capabilities) // deterministic finding order

	var patterns []models.DetectedPattern
	for _, capability := range capabilities {
		count := failures[capability]
		patterns = append(patterns, models.DetectedPattern{
			Type:        models.PatternEventAnomaly,
			Description: fmt.Sprintf("Repeated failures on %q: %d failures in window", capability, count),
			Occurrences: count,
			Confidence:  failureConfidence,
			Severity:    models.SeverityHigh,
			Score:       failureScore,
		})
	}
	return patterns
}

// detectEventStorm slides a window over the sorted timeline and flags the
// densest stretch when it exceeds the storm count.
func (a *EventAnomaly) detectEventStorm(events []models.DeviceEvent) *models.DetectedPattern {
	if len(events) <= a.thresholds.StormCount {
		return nil
	}

	sorted := make([]models.DeviceEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	peak := 0
	start := 0
	for end := range sorted {
		for sorted[end].Timestamp.Sub(sorted[start].Timestamp) > a.thresholds.StormWindow {
			start++
		}
		if count := end - start + 1; count > peak {
			peak = count
		}
	}
	if peak <= a.thresholds.StormCount {
		return nil
	}

	return &models.DetectedPattern{
		Type:        models.PatternEventAnomaly,
		Description: fmt.Sprintf("Event storm: %d events within %.0fs", peak, a.thresholds.StormWindow.Seconds()),
		Occurrences: peak,
		Confidence:  stormConfidence,
		Severity:    models.SeverityHigh,
		Score:       stormScore,
	}
}
