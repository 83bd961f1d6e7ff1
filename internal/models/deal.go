package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// Activity statuses for a deal. Deals are never hard-deleted; they are
// deactivated in place with one of these reasons.
const (
	StatusActive     = "active"
	StatusExpired    = "expired"
	StatusFrozenCold = "frozen_cold"
	StatusDeleted    = "deleted"
)

// Snapshot sources.
const (
	SourceHunter  = "hunter"
	SourceTracker = "tracker"
)

// Observation is a single scraped sighting of a deal, fully typed and
// validated at the scraper boundary before anything downstream sees it.
type Observation struct {
	URL              string    `validate:"required,url"`
	Title            string    `validate:"required"`
	Merchant         string    `validate:"-"`
	ImageURL         string    `validate:"omitempty,url"`
	PriceDisplay     string    `validate:"-"`
	Temperature      float64   `validate:"gte=0"`
	HoursSincePosted float64   `validate:"gte=0"`
	PostedText       string    `validate:"-"` // raw posted-time text; carries the expiry marker
	Expired          bool      `validate:"-"`
	PublishedAt      time.Time `validate:"-"`
}

// Deal is the persisted identity of a deal, keyed by its source URL.
type Deal struct {
	ID             int64
	URL            string
	Title          string
	Merchant       string
	ImageURL       string
	MaxSeenRating  int
	IsActive       bool
	ActivityStatus string
	CreatedAt      time.Time
	LastTrackedAt  time.Time
}

// Snapshot is one append-only history point for a deal.
type Snapshot struct {
	DealID           int64
	Temperature      float64
	Velocity         float64 // degrees per minute
	ViralScore       float64
	HoursSincePosted float64
	Source           string
	RecordedAt       time.Time
}

// Outcome records how a deal ultimately performed. Updated monotonically:
// the final max temperature and threshold flags never regress.
type Outcome struct {
	DealID        int64
	FinalMaxTemp  float64
	Reached200    bool
	Reached500    bool
	Reached1000   bool
	TimeTo200Mins *float64
	UpdatedAt     time.Time
}

// AnalysisResult is the scoring engine's verdict for one observation.
// Transient; only FinalScore is persisted (into the snapshot).
type AnalysisResult struct {
	ViralScore   float64 // base time-decayed score before multipliers
	Acceleration float64 // second-derivative multiplier, clamped [0.5, 2.0]
	TrafficMult  float64 // hour-of-day multiplier
	FinalScore   float64
	IsHot        bool
	Rating       int // 0..4
}

// Velocity computes degrees per minute the way every history row stores it,
// with the minute floor preventing blow-up on brand-new posts.
func Velocity(temperature, hoursSincePosted float64) float64 {
	minutes := hoursSincePosted * 60
	if minutes < 1 {
		minutes = 1
	}
	return temperature / minutes
}
