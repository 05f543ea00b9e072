package payment

import (
	"context"
	"time"

	"ottsonly-backend/pkg/logger"
)

// Reclaimer runs Reclaim on a fixed interval until its context ends.
type Reclaimer struct {
	svc      *Service
	interval time.Duration
}

func NewReclaimer(svc *Service, interval time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reclaimer{svc: svc, interval: interval}
}

func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logger.Infof("payment reclaimer started (every %s, timeout %s)", r.interval, r.svc.cfg.ProcessingTimeout)

	for {
		select {
		case <-ctx.Done():
			logger.Info("payment reclaimer stopped")
			return
		case <-ticker.C:
			report, err := r.svc.Reclaim(ctx)
			if err != nil {
				logger.Errorf("payment reclaim: %v", err)
				continue
			}
			if report.Completed+report.Reset > 0 {
				logger.Infof("payment reclaim: %d completed, %d reset", report.Completed, report.Reset)
			}
		}
	}
}
