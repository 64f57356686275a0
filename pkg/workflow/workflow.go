package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"fleetdiag/pkg/config"
	"fleetdiag/pkg/detection"
	"fleetdiag/pkg/models"
	"fleetdiag/pkg/registry"
	"fleetdiag/pkg/worker"
)

// sampleDeviceLimit bounds SampleDeviceIDs for display surfaces.
const sampleDeviceLimit = 5

// Workflow orchestrates per-device detection across the whole fleet.
// Each call re-derives everything from current registry data; no state
// is carried between invocations.
type Workflow struct {
	registry         registry.Registry
	detector         *detection.PatternDetector
	batchSize        int
	eventLimit       int
	issueLimit       int
	warningThreshold float64
}

// NewWorkflow creates a fleet workflow over the given registry.
func NewWorkflow(reg registry.Registry, detector *detection.PatternDetector, cfg *config.Config) *Workflow {
	return &Workflow{
		registry:         reg,
		detector:         detector,
		batchSize:        cfg.FleetBatchSize,
		eventLimit:       cfg.EventFetchLimit,
		issueLimit:       cfg.RecentIssueLimit,
		warningThreshold: cfg.BatteryWarningThreshold,
	}
}

// DetectWarningDevices scans the fleet in batches and returns the IDs of
// devices whose latest battery reading is below the warning threshold.
// Devices whose health fetch fails are skipped, not escalated.
func (w *Workflow) DetectWarningDevices(ctx context.Context) ([]string, error) {
	devices, err := w.registry.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	healths := w.fetchHealthBatched(ctx, devices)

	warnings := make([]string, 0)
	for _, health := range healths {
		if health == nil || health.BatteryLevel == nil {
			continue
		}
		if *health.BatteryLevel < w.warningThreshold {
			warnings = append(warnings, health.DeviceID)
		}
	}

	slog.Info("Warning device scan complete",
		"component", "Workflow", "devices", len(devices), "warnings", len(warnings))
	return warnings, nil
}

// SystemWidePatterns runs detection per device and tallies, per finding
// type, how many distinct devices produced it. The percentage of the
// fleet affected drives the aggregate severity.
func (w *Workflow) SystemWidePatterns(ctx context.Context) ([]models.SystemWidePattern, error) {
	devices, err := w.registry.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, nil
	}

	results := w.detectBatched(ctx, devices)

	type tally struct {
		deviceIDs       []string
		confidenceSum   float64
		confidenceCount int
	}
	tallies := make(map[models.PatternType]*tally)

	for _, result := range results {
		if result == nil {
			continue
		}
		seen := make(map[models.PatternType]bool)
		for _, pattern := range result.Patterns {
			if pattern.Type == models.PatternNormal {
				continue
			}
			entry, ok := tallies[pattern.Type]
			if !ok {
				entry = &tally{}
				tallies[pattern.Type] = entry
			}
			if !seen[pattern.Type] {
				seen[pattern.Type] = true
				entry.deviceIDs = append(entry.deviceIDs, result.DeviceID)
			}
			entry.confidenceSum += pattern.Confidence
			entry.confidenceCount++
		}
	}

	patterns := make([]models.SystemWidePattern, 0, len(tallies))
	total := len(devices)
	for patternType, entry := range tallies {
		affected := len(entry.deviceIDs)
		percent := float64(affected) / float64(total) * 100

		sample := entry.deviceIDs
		if len(sample) > sampleDeviceLimit {
			sample = sample[:sampleDeviceLimit]
		}

		patterns = append(patterns, models.SystemWidePattern{
			Type:                patternType,
			AffectedDeviceCount: affected,
			TotalDeviceCount:    total,
			PercentAffected:     int(math.Round(percent)),
			Severity:            fleetSeverity(percent),
			Confidence:          entry.confidenceSum / float64(entry.confidenceCount),
			SampleDeviceIDs:     sample,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].AffectedDeviceCount != patterns[j].AffectedDeviceCount {
			return patterns[i].AffectedDeviceCount > patterns[j].AffectedDeviceCount
		}
		return patterns[i].Type < patterns[j].Type
	})

	slog.Info("System-wide pattern scan complete",
		"component", "Workflow", "devices", total, "pattern_types", len(patterns))
	return patterns, nil
}

// AggregateRecentIssues builds the bounded prioritized issue list for
// status reporting: offline devices first, then battery warnings, then
// high-confidence findings for the remaining devices.
func (w *Workflow) AggregateRecentIssues(ctx context.Context) ([]string, error) {
	devices, err := w.registry.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	healths := w.fetchHealthBatched(ctx, devices)

	issues := make([]string, 0, w.issueLimit)
	covered := make(map[string]bool)

	for i, device := range devices {
		health := healths[i]
		if health == nil || health.Online {
			continue
		}
		issues = append(issues, fmt.Sprintf("%s: Device offline", device.Name))
		covered[device.ID] = true
	}

	for i, device := range devices {
		health := healths[i]
		if covered[device.ID] || health == nil || health.BatteryLevel == nil {
			continue
		}
		if *health.BatteryLevel < w.warningThreshold {
			issues = append(issues, fmt.Sprintf("%s: Battery low at %.0f%%", device.Name, *health.BatteryLevel))
			covered[device.ID] = true
		}
	}

	if len(issues) < w.issueLimit {
		remaining := make([]*models.Device, 0, len(devices))
		for _, device := range devices {
			if !covered[device.ID] {
				remaining = append(remaining, device)
			}
		}

		results := w.detectBatched(ctx, remaining)
		for i, result := range results {
			if result == nil {
				continue
			}
			for _, pattern := range result.Patterns {
				if pattern.Type == models.PatternNormal || pattern.Confidence < 0.8 {
					continue
				}
				issues = append(issues, fmt.Sprintf("%s: %s", remaining[i].Name, pattern.Description))
				break // one issue per device keeps the list broad
			}
			if len(issues) >= w.issueLimit {
				break
			}
		}
	}

	if len(issues) > w.issueLimit {
		issues = issues[:w.issueLimit]
	}
	return issues, nil
}

// fetchHealthBatched resolves health for every device, indexed like the
// input. Failed fetches leave a nil entry and are logged, nothing more.
func (w *Workflow) fetchHealthBatched(ctx context.Context, devices []*models.Device) []*models.DeviceHealth {
	results := worker.RunBatches(ctx, devices, w.batchSize,
		func(ctx context.Context, device *models.Device) (*models.DeviceHealth, error) {
			return w.registry.GetDeviceHealth(ctx, device.ID)
		})

	healths := make([]*models.DeviceHealth, len(devices))
	for i, result := range results {
		if result.Err != nil {
			slog.Warn("Skipping device: health fetch failed",
				"component", "Workflow", "device_id", devices[i].ID, "error", result.Err)
			continue
		}
		healths[i] = result.Value
	}
	return healths
}

// detectBatched fetches events and runs detection per device, indexed
// like the input. Failed event fetches leave a nil entry.
func (w *Workflow) detectBatched(ctx context.Context, devices []*models.Device) []*models.DetectionResult {
	results := worker.RunBatches(ctx, devices, w.batchSize,
		func(ctx context.Context, device *models.Device) (*models.DetectionResult, error) {
			events, err := w.registry.GetEvents(ctx, device.ID, w.eventLimit)
			if err != nil {
				return nil, err
			}
			result := w.detector.DetectAll(ctx, device.ID, events)
			return &result, nil
		})

	detections := make([]*models.DetectionResult, len(devices))
	for i, result := range results {
		if result.Err != nil {
			slog.Warn("Skipping device: event fetch failed",
				"component", "Workflow", "device_id", devices[i].ID, "error", result.Err)
			continue
		}
		detections[i] = result.Value
	}
	return detections
}

// fleetSeverity classifies the unrounded percentage of affected devices.
func fleetSeverity(percent float64) models.Severity {
	switch {
	case percent >= 20:
		return models.SeverityCritical
	case percent >= 10:
		return models.SeverityHigh
	case percent >= 5:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
