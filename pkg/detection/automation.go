package detection

import (
	"fmt"
	"sort"

	"fleetdiag/pkg/models"
)

// AutomationConflict looks for rapid state-change clusters on a single
// capability: runs of events whose inter-arrival time stays below the
// rapid-interval threshold. Fixed-interval schedules (60s or more apart)
// never qualify, which keeps ordinary automations out of the findings.
type AutomationConflict struct {
	thresholds Thresholds
}

func NewAutomationConflict(thresholds Thresholds) *AutomationConflict {
	return &AutomationConflict{thresholds: thresholds}
}

func (a *AutomationConflict) Name() string { return "automation_conflict" }

const (
	conflictConfidenceQuietHours = 0.98
	conflictConfidenceRetrigger  = 0.95
	conflictConfidenceBaseline   = 0.85
	conflictConfidenceSmall      = 0.7
)

func (a *AutomationConflict) Detect(events []models.DeviceEvent) ([]models.DetectedPattern, error) {
	byCapability := make(map[string][]models.DeviceEvent)
	for _, event := range events {
		byCapability[event.Capability] = append(byCapability[event.Capability], event)
	}

	capabilities := make([]string, 0, len(byCapability))
	for capability := range byCapability {
		capabilities = append(capabilities, capability)
	}
	sort.Strings(capabilities) // deterministic finding order

	var patterns []models.DetectedPattern
	for _, capability := range capabilities {
		group := byCapability[capability]
		sort.Slice(group, func(i, j int) bool { return group[i].Timestamp.Before(group[j].Timestamp) })
		patterns = append(patterns, a.findClusters(capability, group)...)
	}
	return patterns, nil
}

// findClusters walks one capability's sorted events and emits a finding
// per maximal run of rapid changes.
func (a *AutomationConflict) findClusters(capability string, events []models.DeviceEvent) []models.DetectedPattern {
	var patterns []models.DetectedPattern

	clusterStart := 0
	for i := 1; i <= len(events); i++ {
		rapid := i < len(events) && events[i].Timestamp.Sub(events[i-1].Timestamp) < a.thresholds.RapidInterval
		if rapid {
			continue
		}

		size := i - clusterStart
		if size >= clusterMin {
			patterns = append(patterns, a.clusterPattern(capability, events[clusterStart:i]))
		}
		clusterStart = i
	}
	return patterns
}

func (a *AutomationConflict) clusterPattern(capability string, cluster []models.DeviceEvent) models.DetectedPattern {
	size := len(cluster)

	severity := models.SeverityLow
	score := 0.3
	switch {
	case size >= clusterHigh:
		severity = models.SeverityHigh
		score = 0.9
	case size >= clusterMed:
		severity = models.SeverityMedium
		score = 0.6
	}

	confidence := conflictConfidenceSmall
	if size >= clusterMed {
		confidence = conflictConfidenceBaseline
	}
	if a.hasRetriggers(cluster) {
		confidence = conflictConfidenceRetrigger
	}
	if inQuietHours(cluster[0].Timestamp.Hour()) {
		confidence = conflictConfidenceQuietHours
	}

	return models.DetectedPattern{
		Type:        models.PatternAutomationConflict,
		Description: fmt.Sprintf("Rapid state changes on %q: %d changes within %.0fs intervals", capability, size, a.thresholds.RapidInterval.Seconds()),
		Occurrences: size,
		Confidence:  confidence,
		Severity:    severity,
		Score:       score,
	}
}

// hasRetriggers reports whether any two consecutive events are close
// enough to imply automation thrash.
func (a *AutomationConflict) hasRetriggers(cluster []models.DeviceEvent) bool {
	for i := 1; i < len(cluster); i++ {
		if cluster[i].Timestamp.Sub(cluster[i-1].Timestamp) < a.thresholds.Retrigger {
			return true
		}
	}
	return false
}

func inQuietHours(hour int) bool {
	return hour >= quietHourStart && hour < quietHourEnd
}
