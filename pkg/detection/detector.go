package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fleetdiag/pkg/models"
)

// Algorithm is the shared contract of all detection algorithms: a pure
// function over one device's event window. Algorithms never learn which
// device they analyze; the detector stamps the device ID on findings.
type Algorithm interface {
	Name() string
	Detect(events []models.DeviceEvent) ([]models.DetectedPattern, error)
}

// PatternDetector fans one device's event window out to every algorithm
// concurrently and settles all outcomes. One algorithm failing never
// aborts its siblings; failures surface as entries in AlgorithmErrors.
type PatternDetector struct {
	algorithms []Algorithm
}

// NewPatternDetector creates a detector running the standard four algorithms.
func NewPatternDetector(thresholds Thresholds) *PatternDetector {
	return &PatternDetector{
		algorithms: []Algorithm{
			NewConnectivityGap(thresholds),
			NewAutomationConflict(thresholds),
			NewEventAnomaly(thresholds),
			NewBatteryDegradation(thresholds),
		},
	}
}

type algorithmOutcome struct {
	patterns []models.DetectedPattern
	err      error
}

// DetectAll runs every algorithm against the event window and merges the
// findings, sorted by severity then score. The result always carries at
// least one pattern: a synthesized "normal" entry when nothing fired.
func (detector *PatternDetector) DetectAll(ctx context.Context, deviceID string, events []models.DeviceEvent) models.DetectionResult {
	start := time.Now()

	outcomes := make([]algorithmOutcome, len(detector.algorithms))
	done := make(chan int, len(detector.algorithms))

	for i, algorithm := range detector.algorithms {
		go func(i int, algorithm Algorithm) {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = algorithmOutcome{err: fmt.Errorf("panic: %v", r)}
				}
				done <- i
			}()
			patterns, err := algorithm.Detect(events)
			outcomes[i] = algorithmOutcome{patterns: patterns, err: err}
		}(i, algorithm)
	}

	for range detector.algorithms {
		select {
		case <-ctx.Done():
			// Algorithms run on in-memory data and finish in microseconds;
			// drain rather than leak the remaining goroutines.
			<-done
		case <-done:
		}
	}

	result := models.DetectionResult{DeviceID: deviceID}
	for i, algorithm := range detector.algorithms {
		outcome := outcomes[i]
		if outcome.err != nil {
			slog.Warn("Detection algorithm failed",
				"component", "PatternDetector",
				"algorithm", algorithm.Name(),
				"device_id", deviceID,
				"error", outcome.err,
			)
			if result.AlgorithmErrors == nil {
				result.AlgorithmErrors = make(map[string]string)
			}
			result.AlgorithmErrors[algorithm.Name()] = outcome.err.Error()
			continue
		}
		for _, pattern := range outcome.patterns {
			pattern.DeviceID = deviceID
			result.Patterns = append(result.Patterns, pattern)
		}
	}

	if len(result.Patterns) == 0 {
		result.Patterns = []models.DetectedPattern{{
			Type:        models.PatternNormal,
			Description: "No unusual patterns detected",
			Occurrences: 0,
			Confidence:  0.95,
			Severity:    models.SeverityLow,
			Score:       0,
			DeviceID:    deviceID,
		}}
	}

	sortPatterns(result.Patterns)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

// sortPatterns orders findings by severity (critical first) then score
// descending within a tier. The merge order is fixed by algorithm index,
// so the stable sort makes the full ordering deterministic.
func sortPatterns(patterns []models.DetectedPattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Severity.Rank() != patterns[j].Severity.Rank() {
			return patterns[i].Severity.Rank() > patterns[j].Severity.Rank()
		}
		return patterns[i].Score > patterns[j].Score
	})
}
