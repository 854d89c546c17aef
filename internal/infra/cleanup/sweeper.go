package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mario-guerra/translation-service/internal/domain/port"
)

// Sweeper periodically deletes containers older than the retention
// window, based on the creation-date metadata recorded when the
// container was made.
type Sweeper struct {
	store     port.ContainerStore
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
}

func NewSweeper(store port.ContainerStore, logger *zap.Logger, interval time.Duration, retentionDays int) *Sweeper {
	return &Sweeper{
		store:     store,
		logger:    logger,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Run loops until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Info("container sweeper stopping")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	containers, err := s.store.ListContainers(ctx)
	if err != nil {
		s.logger.Error("failed to list containers", zap.Error(err))
		return
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	for _, name := range containers {
		created, err := s.store.ContainerCreationDate(ctx, name)
		if err != nil {
			s.logger.Warn("skipping container without readable creation date",
				zap.String("container", name), zap.Error(err))
			continue
		}
		if created.After(cutoff) {
			continue
		}

		s.logger.Info("deleting expired container",
			zap.String("container", name),
			zap.Time("created", created),
		)
		if err := s.store.DeleteContainer(ctx, name); err != nil {
			s.logger.Error("failed to delete expired container",
				zap.String("container", name), zap.Error(err))
		}
	}
}
