// Package processor holds the three scrape-and-score pipelines: the hunter
// (new-deals listing), the tracker (per-deal re-checks) and the historian
// (site-wide hottest listing). Each is one idempotent cycle invoked by the
// scheduler; the processor itself keeps no cycle state.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avaldezmx/promopulse/internal/models"
)

type Processor struct {
	store        DealStore
	fetcher      Fetcher
	engine       Analyzer
	broadcaster  Broadcaster
	adminChatIDs []string
	batchSize    int
}

func New(store DealStore, fetcher Fetcher, engine Analyzer, broadcaster Broadcaster, adminChatIDs []string, trackerBatchSize int) *Processor {
	if trackerBatchSize < 1 {
		trackerBatchSize = 10
	}
	return &Processor{
		store:        store,
		fetcher:      fetcher,
		engine:       engine,
		broadcaster:  broadcaster,
		adminChatIDs: adminChatIDs,
		batchSize:    trackerBatchSize,
	}
}

// RunHunterCycle scrapes the new-deals listing once, scores every item
// against its previous snapshot and persists the results. The fetch error is
// returned so the caller can count consecutive failures; per-item failures
// are logged and skipped.
func (p *Processor) RunHunterCycle(ctx context.Context) error {
	observations, err := p.fetcher.FetchNewDeals(ctx)
	if err != nil {
		return fmt.Errorf("hunter fetch: %w", err)
	}
	if len(observations) == 0 {
		slog.Warn("Hunter cycle found no deals in listing")
		return nil
	}

	// Previous snapshots are read for the whole batch before any write, so
	// every item in this cycle is scored against the prior cycle's state.
	urls := make([]string, len(observations))
	for i, obs := range observations {
		urls[i] = obs.URL
	}
	previous, err := p.store.LatestSnapshotsBatch(ctx, urls)
	if err != nil {
		return fmt.Errorf("hunter snapshot batch: %w", err)
	}

	var hot int
	for _, obs := range observations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res := p.engine.Analyze(ctx, obs, previous[obs.URL])
		if _, err := p.store.ProcessObservation(ctx, obs, res.FinalScore, models.SourceHunter); err != nil {
			slog.Error("Failed to persist observation", "url", obs.URL, "error", err)
			continue
		}
		if res.IsHot {
			hot++
			p.handleViral(ctx, obs, res)
		}
	}

	slog.Info("Hunter cycle complete", "deals", len(observations), "hot", hot)
	return nil
}

// handleViral notifies a hot deal once per rating level: a deal already
// alerted at rating 3 stays quiet until it climbs to 4.
func (p *Processor) handleViral(ctx context.Context, obs models.Observation, res models.AnalysisResult) {
	maxSeen, err := p.store.MaxRating(ctx, obs.URL)
	if err != nil {
		slog.Error("Failed to read max rating", "url", obs.URL, "error", err)
		return
	}
	if res.Rating <= maxSeen {
		return
	}

	deal, err := p.store.GetDealByURL(ctx, obs.URL)
	if err != nil {
		slog.Error("Hot deal not found after persist", "url", obs.URL, "error", err)
		return
	}

	p.broadcaster.Broadcast(ctx, deal, obs, res, p.recipients(ctx))

	if err := p.store.UpdateMaxRating(ctx, obs.URL, res.Rating); err != nil {
		slog.Error("Failed to raise max rating", "url", obs.URL, "error", err)
	}
}

// recipients is the subscriber list plus the always-notified admin chats,
// deduplicated.
func (p *Processor) recipients(ctx context.Context) []string {
	subscribers, err := p.store.Subscribers(ctx)
	if err != nil {
		slog.Error("Failed to load subscribers, notifying admins only", "error", err)
		subscribers = nil
	}

	seen := make(map[string]bool, len(subscribers)+len(p.adminChatIDs))
	var targets []string
	for _, id := range append(subscribers, p.adminChatIDs...) {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}
	return targets
}

// latestSnapshot is LatestSnapshot with ErrNotFound mapped to nil: a first
// sighting simply has no previous point.
func (p *Processor) latestSnapshot(ctx context.Context, url string) (*models.Snapshot, error) {
	snap, err := p.store.LatestSnapshot(ctx, url)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return snap, err
}
