// Package scoring turns a raw deal observation into a time-decayed viral
// score and a 0-4 fire rating.
//
// The model is a smoothed velocity with logarithmic time decay:
//
//	smoothed = temperature / (hours + 0.5)
//	base     = smoothed / log2(hours + 2)
//
// multiplied by an acceleration signal (tanh of the velocity ratio, scaled by
// an absolute-gain confidence factor) and an hour-of-day traffic multiplier,
// with a flat 0.2 penalty for old-and-cold items.
package scoring

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/avaldezmx/promopulse/internal/models"
)

const (
	// Snapshot gaps at or below this many hours carry no acceleration signal.
	minAccelGapHours = 0.05
	// Temperature gain at which the acceleration confidence saturates.
	accelConfidenceScale = 15.0

	accelFloor = 0.5
	accelCeil  = 2.0

	agingPenalty = 0.2

	// Observations younger than this have too little signal for the shadow
	// predictor to say anything meaningful.
	predictorMinHours = 0.25
)

// Predictor is an optional shadow model estimating the eventual maximum
// temperature of a deal. Its output is logged, never acted on.
type Predictor interface {
	PredictMaxTemp(ctx context.Context, temperature, velocity float64, observedAt time.Time) (float64, error)
}

// Engine scores observations against one immutable config snapshot at a time.
// Reconfigure swaps the snapshot with a single atomic store, so Hunter and
// Tracker read it lock-free while the tuner replaces it.
type Engine struct {
	cfg       atomic.Pointer[Config]
	predictor Predictor
	now       func() time.Time
}

// NewEngine creates an engine with the given starting config. predictor may
// be nil; absence changes nothing about the verdicts.
func NewEngine(cfg Config, predictor Predictor) *Engine {
	e := &Engine{predictor: predictor, now: time.Now}
	e.cfg.Store(&cfg)
	return e
}

// Reconfigure atomically replaces the whole config snapshot.
func (e *Engine) Reconfigure(cfg Config) {
	e.cfg.Store(&cfg)
	slog.Info("Scoring config swapped",
		"viral_threshold", cfg.ViralThreshold,
		"min_seed_temp", cfg.MinSeedTemp)
}

// Config returns the current snapshot.
func (e *Engine) Config() Config {
	return *e.cfg.Load()
}

// Analyze scores one observation against its previous snapshot, if any.
// Pure with respect to persistent state: the same inputs always produce the
// same result under the same config.
func (e *Engine) Analyze(ctx context.Context, obs models.Observation, prev *models.Snapshot) models.AnalysisResult {
	cfg := *e.cfg.Load()

	result := models.AnalysisResult{Acceleration: 1.0, TrafficMult: 1.0}

	// Expired posts score zero no matter what the numbers say.
	if obs.Expired {
		return result
	}
	// Anti-noise seed gate.
	if obs.Temperature < cfg.MinSeedTemp {
		return result
	}

	base := baseScore(obs.Temperature, obs.HoursSincePosted)
	accel := acceleration(obs, prev)
	traffic := hourMultiplier(e.observedHour(obs))

	final := base * traffic * accel
	if agedOut(obs.Temperature, obs.HoursSincePosted) {
		final *= agingPenalty
	}

	result.ViralScore = base
	result.Acceleration = accel
	result.TrafficMult = traffic
	result.FinalScore = round2(final)
	result.IsHot = result.FinalScore >= cfg.ViralThreshold
	result.Rating = rating(result.FinalScore, cfg)

	e.shadowCheck(ctx, obs, result)
	return result
}

func baseScore(temperature, hours float64) float64 {
	smoothed := temperature / (hours + 0.5)
	return round2(smoothed / math.Log2(hours+2))
}

func acceleration(obs models.Observation, prev *models.Snapshot) float64 {
	if prev == nil {
		return 1.0
	}
	dh := obs.HoursSincePosted - prev.HoursSincePosted
	if dh <= minAccelGapHours {
		return 1.0
	}
	dt := obs.Temperature - prev.Temperature
	if dt <= 0 {
		return accelFloor
	}

	currentVel := dt / dh
	historicalVel := prev.Temperature / math.Max(0.1, prev.HoursSincePosted)
	if historicalVel <= 0 {
		return 1.0
	}

	ratio := currentVel / historicalVel
	confidence := math.Min(1.0, dt/accelConfidenceScale)
	accel := 1.0 + math.Tanh(ratio-1.0)*confidence
	return clamp(accel, accelFloor, accelCeil)
}

// hourMultiplier rewards velocity achieved against light organic traffic:
// the small hours get a bonus, daytime is neutral.
func hourMultiplier(hour int) float64 {
	switch {
	case hour >= 2 && hour < 8:
		return 1.3
	case hour < 2:
		return 1.15
	default:
		return 1.0
	}
}

// agedOut flags items that are both old and cold. The continuous decay
// already punishes them; this heuristic kills them outright.
func agedOut(temperature, hours float64) bool {
	if hours >= 2.0 && temperature < 100 {
		return true
	}
	if hours >= 1.0 && temperature < 50 {
		return true
	}
	return false
}

func rating(score float64, cfg Config) int {
	switch {
	case score <= 0:
		return 0
	case score >= cfg.ScoreTier4:
		return 4
	case score >= cfg.ScoreTier3:
		return 3
	case score >= cfg.ScoreTier2:
		return 2
	default:
		return 1
	}
}

// shadowCheck asks the optional predictor for an eventual-max estimate and
// logs when it disagrees with the heuristic verdict. The heuristic is always
// authoritative.
func (e *Engine) shadowCheck(ctx context.Context, obs models.Observation, res models.AnalysisResult) {
	if e.predictor == nil || obs.HoursSincePosted < predictorMinHours {
		return
	}
	velocity := models.Velocity(obs.Temperature, obs.HoursSincePosted)
	predicted, err := e.predictor.PredictMaxTemp(ctx, obs.Temperature, velocity, e.now())
	if err != nil {
		slog.Debug("Shadow predictor unavailable", "url", obs.URL, "error", err)
		return
	}

	disagrees := (predicted >= 200 && !res.IsHot) || (predicted < 100 && res.IsHot)
	if disagrees {
		slog.Info("Shadow predictor disagrees with heuristic",
			"url", obs.URL,
			"predicted_max_temp", round2(predicted),
			"final_score", res.FinalScore,
			"is_hot", res.IsHot)
	}
}

func (e *Engine) observedHour(obs models.Observation) int {
	if !obs.PublishedAt.IsZero() {
		return obs.PublishedAt.Local().Hour()
	}
	return e.now().Local().Hour()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
