package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/logger"
	"github.com/MrSnakeDoc/consentgate/internal/policy"
)

// PolicySink receives a freshly loaded policy.
type PolicySink interface {
	SetPolicy(p *policy.Policy)
}

// PolicyReloader re-reads the policy file periodically and on demand.
// A file that fails to load or validate leaves the current policy in place.
type PolicyReloader struct {
	loader        *policy.Loader
	sink          PolicySink
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewPolicyReloader creates a new policy reloader
func NewPolicyReloader(
	loader *policy.Loader,
	sink PolicySink,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *PolicyReloader {
	return &PolicyReloader{
		loader:        loader,
		sink:          sink,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the policy once, then keeps it fresh.
// A zero interval disables periodic reloads; manual triggers still work.
func (pr *PolicyReloader) Start(ctx context.Context) error {
	if err := pr.Reload(ctx); err != nil {
		return fmt.Errorf("initial policy load failed: %w", err)
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if pr.interval > 0 {
		ticker = time.NewTicker(pr.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if err := pr.Reload(ctx); err != nil {
					pr.logger.Error("failed to reload policy",
						logger.Error(err))
				}
			case <-pr.manualTrigger:
				pr.logger.Info("manual policy reload triggered")
				if err := pr.Reload(ctx); err != nil {
					pr.logger.Error("failed to reload policy",
						logger.Error(err))
				}
			case <-pr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (pr *PolicyReloader) Stop() {
	close(pr.stopCh)
}

// Reload loads the policy file and hands it to the sink.
func (pr *PolicyReloader) Reload(_ context.Context) error {
	p, err := pr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	pr.sink.SetPolicy(p)

	pr.logger.Info("policy loaded",
		logger.String("path", pr.loader.Path()),
		logger.String("property_id", p.Analytics.PropertyID),
		logger.Duration("banner_delay", p.Banner.Delay))
	return nil
}
