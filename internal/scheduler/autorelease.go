// internal/scheduler/autorelease.go
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/services"
)

// AutoRelease is the background promoter of escrow payments: on every tick it
// releases all INITIATED payments whose holding period has elapsed. Each
// release is a conditional write, so overlapping runs (or a concurrent manual
// release) never double-release a payment; a pass that finds nothing eligible
// writes nothing.
type AutoRelease struct {
	payments *services.PaymentService
	interval time.Duration
	delay    time.Duration
}

func NewAutoRelease(payments *services.PaymentService, cfg *config.Config) *AutoRelease {
	return &AutoRelease{
		payments: payments,
		interval: cfg.Escrow.SchedulerInterval,
		delay:    cfg.Escrow.ReleaseDelay,
	}
}

// Start runs the release loop until the context is cancelled. It performs one
// pass immediately so a restart does not wait a full interval to catch up.
func (a *AutoRelease) Start(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"interval": a.interval,
		"delay":    a.delay,
	}).Info("Auto-release scheduler started")

	a.RunOnce()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Auto-release scheduler stopped")
			return
		case <-ticker.C:
			a.RunOnce()
		}
	}
}

// RunOnce executes a single release pass. Exposed so the privileged trigger
// endpoint can force a pass outside the timer.
func (a *AutoRelease) RunOnce() {
	released, err := a.payments.ReleaseDue(a.delay)
	if err != nil {
		logrus.WithError(err).Error("Auto-release pass failed")
		return
	}
	if released > 0 {
		logrus.WithField("released", released).Info("Auto-release pass completed")
	}
}
