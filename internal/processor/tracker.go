package processor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avaldezmx/promopulse/internal/models"
	"github.com/avaldezmx/promopulse/internal/scraper"
)

// RunTrackerCycle re-checks the oldest-tracked active deals, one detail fetch
// per deal. Each deal gets a fresh scored snapshot, a chance to alert at a
// higher rating, and a terminal check: expired posts and old-but-cold posts
// are deactivated with their outcome finalized.
func (p *Processor) RunTrackerCycle(ctx context.Context) error {
	deals, err := p.store.ActiveDealsBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		return nil
	}

	for _, deal := range deals {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.trackOne(ctx, deal)
	}
	return nil
}

func (p *Processor) trackOne(ctx context.Context, deal models.Deal) {
	obs, err := p.fetcher.FetchDealDetail(ctx, deal.URL)
	if err != nil {
		p.handleTrackFailure(ctx, deal, err)
		return
	}

	prev, err := p.latestSnapshot(ctx, deal.URL)
	if err != nil {
		slog.Error("Failed to load previous snapshot", "url", deal.URL, "error", err)
		return
	}

	res := p.engine.Analyze(ctx, *obs, prev)
	if _, err := p.store.ProcessObservation(ctx, *obs, res.FinalScore, models.SourceTracker); err != nil {
		slog.Error("Failed to persist tracker observation", "url", deal.URL, "error", err)
		return
	}
	if err := p.store.TouchTracked(ctx, deal.ID); err != nil {
		slog.Error("Failed to stamp tracking time", "url", deal.URL, "error", err)
	}

	if res.IsHot {
		p.handleViral(ctx, *obs, res)
	}

	cfg := p.engine.Config()
	switch {
	case obs.Expired:
		p.finalize(ctx, deal, models.StatusExpired)
	case obs.HoursSincePosted >= cfg.ColdFreezeHours && obs.Temperature < cfg.ColdFreezeTemp:
		p.finalize(ctx, deal, models.StatusFrozenCold)
	}
}

// handleTrackFailure routes the tracker's terminal conditions. A 404 means
// the post is in moderation and may return, so the deal just waits its turn
// again. Any other client error means the post is gone; the deal is retired
// without a snapshot or an outcome, since no final temperature was observed.
func (p *Processor) handleTrackFailure(ctx context.Context, deal models.Deal, err error) {
	var statusErr *scraper.StatusError
	switch {
	case errors.Is(err, scraper.ErrUnderReview):
		slog.Info("Deal under review, will retry later", "url", deal.URL)
	case errors.As(err, &statusErr):
		slog.Info("Deal page gone, retiring", "url", deal.URL, "status", statusErr.Code)
		if err := p.store.Deactivate(ctx, deal.ID, models.StatusDeleted); err != nil {
			slog.Error("Failed to retire deleted deal", "url", deal.URL, "error", err)
			return
		}
	default:
		slog.Error("Tracker fetch failed", "url", deal.URL, "error", err)
	}
	// Rotate to the back of the queue either way so one stuck deal cannot
	// monopolize the batch.
	if err := p.store.TouchTracked(ctx, deal.ID); err != nil {
		slog.Error("Failed to stamp tracking time", "url", deal.URL, "error", err)
	}
}

// finalize deactivates a deal and records its outcome from the full history:
// peak temperature and, if it ever reached 200, how long that took.
func (p *Processor) finalize(ctx context.Context, deal models.Deal, status string) {
	if err := p.store.Deactivate(ctx, deal.ID, status); err != nil {
		slog.Error("Failed to deactivate deal", "url", deal.URL, "status", status, "error", err)
		return
	}

	maxTemp, err := p.store.MaxTemperature(ctx, deal.ID)
	if err != nil {
		slog.Error("Failed to read peak temperature", "url", deal.URL, "error", err)
		return
	}

	var timeTo200Mins *float64
	hours, err := p.store.FirstHoursAtOrAbove(ctx, deal.ID, 200)
	if err != nil {
		slog.Error("Failed to read time to 200", "url", deal.URL, "error", err)
	} else if hours != nil {
		mins := *hours * 60
		timeTo200Mins = &mins
	}

	if err := p.store.UpsertOutcome(ctx, deal.ID, maxTemp, timeTo200Mins); err != nil {
		slog.Error("Failed to record outcome", "url", deal.URL, "error", err)
		return
	}
	slog.Info("Deal finalized", "url", deal.URL, "status", status, "max_temp", maxTemp)
}
