package services

import (
	"context"
	"time"

	"github.com/valtrion/allocd/internal/core/domain"
)

// RunSweep re-runs the allocation batch on a fixed interval until the context
// is cancelled. The engine has no mandatory background loop; this exists for
// deployments that want newly vacated or newly added units handed out without
// an operator trigger.
func (s *AllocationService) RunSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info(map[string]interface{}{
		"event":    "sweep_started",
		"interval": interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(map[string]interface{}{"event": "sweep_stopped"})
			return
		case <-ticker.C:
			if _, err := s.RunBatch(ctx, domain.ActorSystem); err != nil {
				s.logger.Error(map[string]interface{}{
					"event": "sweep_batch_failed",
					"err":   err.Error(),
				})
			}
		}
	}
}
