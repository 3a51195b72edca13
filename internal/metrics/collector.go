package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// Nil functions are skipped; functions returning a negative count are treated
// as unavailable.
type StatsSource struct {
	PendingReportCount func() int
	BlockCount         func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.PendingReportCount != nil {
		if n := src.PendingReportCount(); n >= 0 {
			ReportsPending.Set(float64(n))
		}
	}
	if src.BlockCount != nil {
		if n := src.BlockCount(); n >= 0 {
			BlockRelationshipsTotal.Set(float64(n))
		}
	}
}
