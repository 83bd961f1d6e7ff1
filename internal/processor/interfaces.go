package processor

import (
	"context"

	"github.com/avaldezmx/promopulse/internal/models"
	"github.com/avaldezmx/promopulse/internal/scoring"
)

// DealStore abstracts the storage layer for deal data.
type DealStore interface {
	ProcessObservation(ctx context.Context, obs models.Observation, viralScore float64, source string) (int64, error)
	LatestSnapshot(ctx context.Context, url string) (*models.Snapshot, error)
	LatestSnapshotsBatch(ctx context.Context, urls []string) (map[string]*models.Snapshot, error)
	GetDealByURL(ctx context.Context, url string) (*models.Deal, error)
	ActiveDealsBatch(ctx context.Context, limit int) ([]models.Deal, error)
	Deactivate(ctx context.Context, dealID int64, status string) error
	TouchTracked(ctx context.Context, dealID int64) error
	MaxRating(ctx context.Context, url string) (int, error)
	UpdateMaxRating(ctx context.Context, url string, rating int) error
	MaxTemperature(ctx context.Context, dealID int64) (float64, error)
	FirstHoursAtOrAbove(ctx context.Context, dealID int64, temp float64) (*float64, error)
	UpsertOutcome(ctx context.Context, dealID int64, maxTemp float64, timeTo200Mins *float64) error
	Subscribers(ctx context.Context) ([]string, error)
}

// Fetcher abstracts the scraping layer.
type Fetcher interface {
	FetchNewDeals(ctx context.Context) ([]models.Observation, error)
	FetchHottest(ctx context.Context) ([]models.Observation, error)
	FetchDealDetail(ctx context.Context, url string) (*models.Observation, error)
}

// Analyzer abstracts the scoring engine.
type Analyzer interface {
	Analyze(ctx context.Context, obs models.Observation, prev *models.Snapshot) models.AnalysisResult
	Config() scoring.Config
}

// Broadcaster abstracts the notification layer.
type Broadcaster interface {
	Broadcast(ctx context.Context, deal *models.Deal, obs models.Observation, res models.AnalysisResult, chatIDs []string) int
}
