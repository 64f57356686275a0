package models

// PatternType identifies the kind of diagnostic finding an algorithm produced.
type PatternType string

const (
	PatternConnectivityGap    PatternType = "connectivity_gap"
	PatternAutomationConflict PatternType = "automation_conflict"
	PatternEventAnomaly       PatternType = "event_anomaly"
	PatternBatteryDegradation PatternType = "battery_degradation"
	PatternNormal             PatternType = "normal"
)

// Severity is the four-level urgency ranking of a finding.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort weight of a severity. Higher is more urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// DetectedPattern is one finding produced by one algorithm for one device.
type DetectedPattern struct {
	Type        PatternType `json:"type"`
	Description string      `json:"description"`
	Occurrences int         `json:"occurrences"`
	Confidence  float64     `json:"confidence"`
	Severity    Severity    `json:"severity"`
	Score       float64     `json:"score"`
	DeviceID    string      `json:"device_id"`
}

// DetectionResult is the output of running all algorithms for one device.
// AlgorithmErrors carries per-algorithm failure reasons; a key is present
// only for algorithms that failed.
type DetectionResult struct {
	DeviceID        string            `json:"device_id"`
	Patterns        []DetectedPattern `json:"patterns"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	AlgorithmErrors map[string]string `json:"algorithm_errors,omitempty"`
}

// SystemWidePattern is a finding type recurring across multiple devices in one scan.
type SystemWidePattern struct {
	Type                PatternType `json:"type"`
	AffectedDeviceCount int         `json:"affected_device_count"`
	TotalDeviceCount    int         `json:"total_device_count"`
	PercentAffected     int         `json:"percent_affected"`
	Severity            Severity    `json:"severity"`
	Confidence          float64     `json:"confidence"`
	SampleDeviceIDs     []string    `json:"sample_device_ids"`
}
