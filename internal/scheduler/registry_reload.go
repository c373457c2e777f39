package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/gateway/internal/logger"
	"github.com/loomworks/gateway/internal/registry"
)

// RegistryReloader reloads the service registry from its file on a
// fixed interval, or immediately when the manual trigger fires. Swaps
// are atomic; in-flight requests finish on the snapshot they resolved
// against.
type RegistryReloader struct {
	loader        *registry.Loader
	registry      *registry.Registry
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

func NewRegistryReloader(
	loader *registry.Loader,
	reg *registry.Registry,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *RegistryReloader {
	return &RegistryReloader{
		loader:        loader,
		registry:      reg,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic reload loop. The registry is expected to
// hold an initial snapshot already; a failed reload keeps the previous
// snapshot serving.
func (rr *RegistryReloader) Start(ctx context.Context) {
	ticker := time.NewTicker(rr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := rr.Reload(ctx); err != nil {
					rr.logger.Error("scheduled registry reload failed, keeping previous snapshot",
						logger.Error(err))
				}
			case <-rr.manualTrigger:
				rr.logger.Info("manual registry reload triggered")
				if err := rr.Reload(ctx); err != nil {
					rr.logger.Error("manual registry reload failed, keeping previous snapshot",
						logger.Error(err))
				}
			case <-rr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the reload loop.
func (rr *RegistryReloader) Stop() {
	close(rr.stopCh)
}

// Reload loads the registry file and swaps in a new snapshot.
func (rr *RegistryReloader) Reload(_ context.Context) error {
	entries, err := rr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	if err := rr.registry.Swap(entries); err != nil {
		return fmt.Errorf("failed to swap registry snapshot: %w", err)
	}
	rr.logger.Info("registry reloaded",
		logger.Int("services", len(entries)))
	return nil
}
