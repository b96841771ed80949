package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/facultyhub/internal/metrics"
	"github.com/ajitpratap0/facultyhub/internal/store"
)

// Report summarizes the results of a lifecycle run.
type Report struct {
	Expired int  `json:"expired"`
	DryRun  bool `json:"dryRun"`
}

// Manager removes news items whose retention window has passed.
type Manager struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a new lifecycle manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		now:    time.Now,
		logger: logger.With("component", "lifecycle"),
	}
}

// WithClock replaces the manager's clock. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Run executes all lifecycle operations. With dryRun set, expired items are
// counted but not deleted.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	now := m.now().UTC()
	report := &Report{DryRun: dryRun}

	expired, err := m.expireNews(ctx, now, dryRun)
	if err != nil {
		return report, err
	}
	report.Expired = expired
	return report, nil
}

func (m *Manager) expireNews(ctx context.Context, now time.Time, dryRun bool) (int, error) {
	if dryRun {
		items, err := m.store.ListNews(ctx, 0)
		if err != nil {
			return 0, fmt.Errorf("listing news: %w", err)
		}
		expired := 0
		for _, item := range items {
			if item.Expired(now) {
				m.logger.Info("would expire news item", "id", item.ID, "title", item.Title, "expire_at", item.ExpireAt)
				expired++
			}
		}
		return expired, nil
	}

	expired, err := m.store.DeleteExpiredNews(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired news: %w", err)
	}
	if expired > 0 {
		metrics.Add(metrics.NewsExpired, expired)
		m.logger.Info("expired news items removed", "count", expired)
	}
	return expired, nil
}

// Job adapts Run to a scheduler job. Failures are logged.
func (m *Manager) Job(ctx context.Context, _ time.Time) {
	if _, err := m.Run(ctx, false); err != nil {
		m.logger.Error("expiry sweep failed", "error", err)
	}
}
