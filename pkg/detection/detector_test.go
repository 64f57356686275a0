package detection

import (
	"context"
	"testing"
	"time"

	"fleetdiag/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectAllSynthesizesNormalPattern(t *testing.T) {
	detector := NewPatternDetector(DefaultThresholds())

	tests := []struct {
		name   string
		events []models.DeviceEvent
	}{
		{name: "no history", events: nil},
		{
			name: "healthy device",
			events: []models.DeviceEvent{
				batteryEvent("80", 0),
				connEvent(0),
				connEvent(10 * time.Minute),
				{Capability: "switch", Value: "on", Timestamp: testBase.Add(5 * time.Minute)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detector.DetectAll(context.Background(), "device-1", tt.events)

			require.Len(t, result.Patterns, 1)
			assert.Equal(t, models.PatternNormal, result.Patterns[0].Type)
			assert.Equal(t, "No unusual patterns detected", result.Patterns[0].Description)
			assert.Equal(t, 0.95, result.Patterns[0].Confidence)
			assert.Equal(t, "device-1", result.Patterns[0].DeviceID)
			assert.Empty(t, result.AlgorithmErrors)
		})
	}
}

func TestDetectAllMergesAndSorts(t *testing.T) {
	detector := NewPatternDetector(DefaultThresholds())

	// Connectivity gap (critical), battery low (high), daytime automation
	// cluster (medium). All three algorithms contribute.
	daytime := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)
	events := []models.DeviceEvent{
		connEvent(0),
		connEvent(30 * time.Hour),
		batteryEvent("15", time.Hour),
	}
	events = append(events, burst("switch", daytime, 6, 8*time.Second)...)

	result := detector.DetectAll(context.Background(), "device-2", events)

	require.GreaterOrEqual(t, len(result.Patterns), 3)
	for _, pattern := range result.Patterns {
		assert.Equal(t, "device-2", pattern.DeviceID)
		assert.NotEqual(t, models.PatternNormal, pattern.Type)
	}

	// Sorted by severity, then score descending within a tier.
	for i := 1; i < len(result.Patterns); i++ {
		prev, cur := result.Patterns[i-1], result.Patterns[i]
		if prev.Severity.Rank() == cur.Severity.Rank() {
			assert.GreaterOrEqual(t, prev.Score, cur.Score)
		} else {
			assert.Greater(t, prev.Severity.Rank(), cur.Severity.Rank())
		}
	}
	assert.Equal(t, models.PatternConnectivityGap, result.Patterns[0].Type)
	assert.Empty(t, result.AlgorithmErrors)
}

func TestDetectAllPartialFailure(t *testing.T) {
	detector := NewPatternDetector(DefaultThresholds())

	// Malformed battery reading fails one algorithm; the connectivity
	// finding must still come through.
	events := []models.DeviceEvent{
		connEvent(0),
		connEvent(26 * time.Hour),
		batteryEvent("corrupted", time.Hour),
	}

	result := detector.DetectAll(context.Background(), "device-3", events)

	require.Len(t, result.Patterns, 1)
	assert.Equal(t, models.PatternConnectivityGap, result.Patterns[0].Type)
	assert.Equal(t, models.SeverityCritical, result.Patterns[0].Severity)

	require.Contains(t, result.AlgorithmErrors, "battery_degradation")
	assert.Contains(t, result.AlgorithmErrors["battery_degradation"], "corrupted")
	assert.Len(t, result.AlgorithmErrors, 1)
}

func TestDetectAllDeterministic(t *testing.T) {
	detector := NewPatternDetector(DefaultThresholds())

	daytime := time.Date(2026, 3, 14, 14, 0, 0, 0, time.UTC)
	events := append(
		burst("switch", daytime, 12, 3*time.Second),
		burst("lock", daytime.Add(time.Hour), 6, 8*time.Second)...,
	)
	events = append(events, batteryEvent("8", 0))

	first := detector.DetectAll(context.Background(), "device-4", events)
	for i := 0; i < 10; i++ {
		again := detector.DetectAll(context.Background(), "device-4", events)
		assert.Equal(t, first.Patterns, again.Patterns)
		assert.Equal(t, first.AlgorithmErrors, again.AlgorithmErrors)
	}
}

func TestDetectAllRecordsExecutionTime(t *testing.T) {
	detector := NewPatternDetector(DefaultThresholds())

	result := detector.DetectAll(context.Background(), "device-5", nil)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(0))
	assert.Less(t, result.ExecutionTimeMs, int64(500))
}
