package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/packethost/pkg/log"
)

// DefaultProviderHealthPollInterval is how often TrackProviderHealth probes by default.
const DefaultProviderHealthPollInterval = 15 * time.Second

// HealthChecker checks the health of a construct.
type HealthChecker interface {
	IsHealthy(context.Context) bool
}

// TrackProviderHealth polls the location provider's health until ctx is done.
// It updates the ProviderConnected and ProviderHealthcheck metrics.
func TrackProviderHealth(ctx context.Context, logger log.Logger, interval time.Duration, provider HealthChecker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			isHealthy := provider.IsHealthy(ctx)
			lgr := logger.With("status", isHealthy)

			if isHealthy {
				ProviderConnected.Set(1)
				ProviderHealthcheck.WithLabelValues("true").Inc()
				lgr.Debug("tick")
			} else {
				ProviderConnected.Set(0)
				ProviderHealthcheck.WithLabelValues("false").Inc()
				Errors.WithLabelValues("location", "healthcheck").Inc()
				lgr.Error(errors.New("location provider reported unhealthy"))
			}
		case <-ctx.Done():
			return
		}
	}
}
