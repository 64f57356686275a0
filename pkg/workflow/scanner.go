package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fleetdiag/pkg/models"
)

// Scanner periodically refreshes the fleet-wide view so operators see
// emerging system-wide patterns without hitting the API. The snapshot is
// advisory; every API call still computes fresh results.
type Scanner struct {
	workflow *Workflow
	interval time.Duration

	mu        sync.RWMutex
	latest    []models.SystemWidePattern
	scannedAt time.Time
}

func NewScanner(workflow *Workflow, interval time.Duration) *Scanner {
	return &Scanner{workflow: workflow, interval: interval}
}

// Run starts the scanner's main loop.
func (s *Scanner) Run(ctx context.Context) {
	slog.Info("Starting fleet scanner", "component", "Scanner", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping fleet scanner", "component", "Scanner")
			return
		case <-ticker.C:
			s.scan(ctx)
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	patterns, err := s.workflow.SystemWidePatterns(ctx)
	if err != nil {
		slog.Error("Fleet scan failed", "component", "Scanner", "error", err)
		return
	}

	for _, pattern := range patterns {
		if pattern.Severity == models.SeverityCritical || pattern.Severity == models.SeverityHigh {
			slog.Warn("System-wide pattern detected",
				"component", "Scanner",
				"type", string(pattern.Type),
				"affected", pattern.AffectedDeviceCount,
				"total", pattern.TotalDeviceCount,
				"percent", pattern.PercentAffected,
				"severity", string(pattern.Severity),
			)
		}
	}

	s.mu.Lock()
	s.latest = patterns
	s.scannedAt = time.Now()
	s.mu.Unlock()
}

// Latest returns the most recent snapshot and when it was taken.
func (s *Scanner) Latest() ([]models.SystemWidePattern, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.scannedAt
}
