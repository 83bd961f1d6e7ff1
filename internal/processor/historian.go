package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avaldezmx/promopulse/internal/models"
)

// RunHistorianCycle scrapes the site-wide hottest listing and reconciles
// outcomes for deals we already know: a deal that blew up after the tracker
// stopped watching still gets its true peak recorded. Deals we never saw are
// skipped; without a tracked trajectory they teach the tuner nothing.
func (p *Processor) RunHistorianCycle(ctx context.Context) error {
	observations, err := p.fetcher.FetchHottest(ctx)
	if err != nil {
		return fmt.Errorf("historian fetch: %w", err)
	}

	var reconciled int
	for _, obs := range observations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		deal, err := p.store.GetDealByURL(ctx, obs.URL)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Error("Failed to look up hottest-list deal", "url", obs.URL, "error", err)
			continue
		}

		// The outcome upsert is monotonic, so feeding the listing's current
		// temperature can only raise the recorded peak.
		if err := p.store.UpsertOutcome(ctx, deal.ID, obs.Temperature, nil); err != nil {
			slog.Error("Failed to reconcile outcome", "url", obs.URL, "error", err)
			continue
		}
		reconciled++
	}

	slog.Info("Historian cycle complete", "listed", len(observations), "reconciled", reconciled)
	return nil
}
