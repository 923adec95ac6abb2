package app

import (
	"context"
	"time"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/models"
)

// startInterestScheduler posts interest for every account on a fixed interval.
func startInterestScheduler(ctx context.Context, ledger *Ledger, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Interest scheduler: stopped")
			return
		case <-ticker.C:
			postInterest(ctx, ledger, logger)
		}
	}
}

func postInterest(ctx context.Context, ledger *Ledger, logger *common.Logger) {
	start := time.Now()
	upTo := models.Day(ledger.now())

	posted, err := ledger.PostInterestAll(ctx, upTo)
	if err != nil {
		logger.Warn().Err(err).Int("posted", posted).Msg("Interest run: completed with failures")
		return
	}

	logger.Info().
		Time("up_to", upTo).
		Int("accounts", posted).
		Dur("elapsed", time.Since(start)).
		Msg("Interest run: complete")
}
