package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fleetdiag/pkg/config"
	"fleetdiag/pkg/detection"
	"fleetdiag/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry serves fixture devices, events, and health snapshots, with
// per-device failure injection.
type fakeRegistry struct {
	devices    []*models.Device
	events     map[string][]models.DeviceEvent
	health     map[string]*models.DeviceHealth
	failEvents map[string]bool
	failHealth map[string]bool
	listErr    error
}

func (f *fakeRegistry) ListDevices(_ context.Context) ([]*models.Device, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.devices, nil
}

func (f *fakeRegistry) GetEvents(_ context.Context, deviceID string, _ int) ([]models.DeviceEvent, error) {
	if f.failEvents[deviceID] {
		return nil, errors.New("event store unavailable")
	}
	return f.events[deviceID], nil
}

func (f *fakeRegistry) GetDeviceHealth(_ context.Context, deviceID string) (*models.DeviceHealth, error) {
	if f.failHealth[deviceID] {
		return nil, errors.New("health endpoint unavailable")
	}
	if health, ok := f.health[deviceID]; ok {
		return health, nil
	}
	return &models.DeviceHealth{DeviceID: deviceID, Online: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		FleetBatchSize:          10,
		EventFetchLimit:         200,
		RecentIssueLimit:        10,
		BatteryWarningThreshold: 20,
	}
}

func newTestWorkflow(reg *fakeRegistry) *Workflow {
	detector := detection.NewPatternDetector(detection.DefaultThresholds())
	return NewWorkflow(reg, detector, testConfig())
}

func level(v float64) *float64 { return &v }

var scanBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// gapEvents yields a 26h connectivity gap, a critical finding.
func gapEvents() []models.DeviceEvent {
	return []models.DeviceEvent{
		{Capability: "connectivity", Value: "online", Timestamp: scanBase},
		{Capability: "connectivity", Value: "online", Timestamp: scanBase.Add(26 * time.Hour)},
	}
}

func fleet(n int) []*models.Device {
	devices := make([]*models.Device, n)
	for i := range devices {
		id := fmt.Sprintf("device-%02d", i)
		devices[i] = &models.Device{ID: id, Name: "Device " + id, Online: true}
	}
	return devices
}

func TestDetectWarningDevices(t *testing.T) {
	reg := &fakeRegistry{
		devices: fleet(5),
		health: map[string]*models.DeviceHealth{
			"device-00": {DeviceID: "device-00", Online: true, BatteryLevel: level(12)},
			"device-01": {DeviceID: "device-01", Online: true, BatteryLevel: level(85)},
			"device-02": {DeviceID: "device-02", Online: true}, // no battery capability
			"device-03": {DeviceID: "device-03", Online: true, BatteryLevel: level(20)}, // exactly at threshold
		},
		failHealth: map[string]bool{"device-04": true},
	}

	warnings, err := newTestWorkflow(reg).DetectWarningDevices(context.Background())
	require.NoError(t, err)

	// Only the sub-threshold battery qualifies; the failed fetch is
	// silently skipped, not escalated.
	assert.Equal(t, []string{"device-00"}, warnings)
}

func TestDetectWarningDevicesListFailure(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("registry down")}

	_, err := newTestWorkflow(reg).DetectWarningDevices(context.Background())
	assert.Error(t, err)
}

func TestSystemWidePatternsPercentMath(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		affected     int
		wantPercent  int
		wantSeverity models.Severity
	}{
		{name: "25 percent is critical", total: 20, affected: 5, wantPercent: 25, wantSeverity: models.SeverityCritical},
		{name: "exactly 20 percent is critical", total: 10, affected: 2, wantPercent: 20, wantSeverity: models.SeverityCritical},
		{name: "10 percent is high", total: 10, affected: 1, wantPercent: 10, wantSeverity: models.SeverityHigh},
		{name: "5 percent is medium", total: 20, affected: 1, wantPercent: 5, wantSeverity: models.SeverityMedium},
		{name: "4 percent is low", total: 25, affected: 1, wantPercent: 4, wantSeverity: models.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &fakeRegistry{
				devices: fleet(tt.total),
				events:  make(map[string][]models.DeviceEvent),
			}
			for i := 0; i < tt.affected; i++ {
				reg.events[fmt.Sprintf("device-%02d", i)] = gapEvents()
			}

			patterns, err := newTestWorkflow(reg).SystemWidePatterns(context.Background())
			require.NoError(t, err)
			require.Len(t, patterns, 1)

			pattern := patterns[0]
			assert.Equal(t, models.PatternConnectivityGap, pattern.Type)
			assert.Equal(t, tt.affected, pattern.AffectedDeviceCount)
			assert.Equal(t, tt.total, pattern.TotalDeviceCount)
			assert.Equal(t, tt.wantPercent, pattern.PercentAffected)
			assert.Equal(t, tt.wantSeverity, pattern.Severity)
			assert.InDelta(t, 0.8, pattern.Confidence, 1e-9)
			assert.LessOrEqual(t, len(pattern.SampleDeviceIDs), 5)
		})
	}
}

func TestSystemWidePatternsExcludesNormal(t *testing.T) {
	reg := &fakeRegistry{
		devices: fleet(8),
		events:  make(map[string][]models.DeviceEvent), // all devices healthy
	}

	patterns, err := newTestWorkflow(reg).SystemWidePatterns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestSystemWidePatternsSkipsFailedDevices(t *testing.T) {
	reg := &fakeRegistry{
		devices: fleet(10),
		events: map[string][]models.DeviceEvent{
			"device-00": gapEvents(),
			"device-01": gapEvents(),
		},
		failEvents: map[string]bool{"device-02": true},
	}

	patterns, err := newTestWorkflow(reg).SystemWidePatterns(context.Background())
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	// The unreachable device is omitted from the tally, the scan survives.
	assert.Equal(t, 2, patterns[0].AffectedDeviceCount)
	assert.Equal(t, 10, patterns[0].TotalDeviceCount)
}

func TestSystemWidePatternsEmptyFleet(t *testing.T) {
	reg := &fakeRegistry{}
	patterns, err := newTestWorkflow(reg).SystemWidePatterns(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestAggregateRecentIssuesPriorities(t *testing.T) {
	failures := make([]models.DeviceEvent, 5)
	for i := range failures {
		failures[i] = models.DeviceEvent{
			Capability: "lock",
			Outcome:    "failure",
			Timestamp:  scanBase.Add(time.Duration(i) * time.Minute),
		}
	}

	reg := &fakeRegistry{
		devices: []*models.Device{
			{ID: "cam", Name: "Porch Cam", Online: false},
			{ID: "sensor", Name: "Door Sensor", Online: true},
			{ID: "lock", Name: "Front Lock", Online: true},
			{ID: "bulb", Name: "Hall Bulb", Online: true},
		},
		health: map[string]*models.DeviceHealth{
			"cam":    {DeviceID: "cam", Online: false},
			"sensor": {DeviceID: "sensor", Online: true, BatteryLevel: level(12)},
		},
		events: map[string][]models.DeviceEvent{
			"lock": failures,
		},
	}

	issues, err := newTestWorkflow(reg).AggregateRecentIssues(context.Background())
	require.NoError(t, err)
	require.Len(t, issues, 3)

	assert.Equal(t, "Porch Cam: Device offline", issues[0])
	assert.Equal(t, "Door Sensor: Battery low at 12%", issues[1])
	assert.Contains(t, issues[2], "Front Lock: ")
	assert.Contains(t, issues[2], `"lock"`)
}

func TestAggregateRecentIssuesCapped(t *testing.T) {
	devices := fleet(15)
	for _, device := range devices {
		device.Online = false
	}
	health := make(map[string]*models.DeviceHealth, len(devices))
	for _, device := range devices {
		health[device.ID] = &models.DeviceHealth{DeviceID: device.ID, Online: false}
	}
	reg := &fakeRegistry{devices: devices, health: health}

	issues, err := newTestWorkflow(reg).AggregateRecentIssues(context.Background())
	require.NoError(t, err)
	assert.Len(t, issues, 10)
}
