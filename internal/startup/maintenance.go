// Package startup provides background maintenance tasks that run alongside
// the HTTP server, currently the periodic purge of expired analytics
// snapshots.
package startup

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Luuchoh/SpotifyScope/internal/repository"
)

// purgeInterval is how often expired snapshots are removed.
const purgeInterval = time.Hour

// MaintenanceService runs recurring cleanup against the snapshot store.
type MaintenanceService struct {
	snapshots repository.SnapshotRepository
	logger    *logrus.Logger
}

// NewMaintenanceService creates the maintenance runner. The snapshot
// repository may be backed by an unavailable database; purge attempts then
// become no-ops until it recovers.
func NewMaintenanceService(snapshots repository.SnapshotRepository, logger *logrus.Logger) *MaintenanceService {
	return &MaintenanceService{
		snapshots: snapshots,
		logger:    logger,
	}
}

// Run purges expired snapshots on a fixed interval until ctx is canceled.
// It performs one immediate pass on startup.
func (m *MaintenanceService) Run(ctx context.Context) {
	m.purge(ctx)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Snapshot maintenance stopped")
			return
		case <-ticker.C:
			m.purge(ctx)
		}
	}
}

func (m *MaintenanceService) purge(ctx context.Context) {
	removed, err := m.snapshots.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrUnavailable) {
			return
		}
		m.logger.WithError(err).Warn("Failed to purge expired snapshots")
		return
	}

	if removed > 0 {
		m.logger.WithField("removed", removed).Info("Purged expired analytics snapshots")
	}
}
