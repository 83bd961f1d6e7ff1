// Package tuner recalibrates the scoring thresholds from accumulated history.
// Each metric is the 20th percentile of what eventual winners looked like in
// their first minutes: if 80% of deals that later blew up were already above
// a value at the checkpoint, that value is a defensible floor. Every result
// is clamped to a sane band so a thin or skewed sample can never push a
// threshold somewhere absurd.
package tuner

import (
	"context"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/avaldezmx/promopulse/internal/scoring"
	"github.com/avaldezmx/promopulse/internal/storage"
)

const (
	winnerPercentile = 0.20
	// Fewer data points than this and the percentile is noise; the metric
	// keeps its current value.
	minPopulation = 10

	// Golden-ratio diagnostic: P(reach 500 | at 100 within 30 min).
	goldenCheckpointHours = 0.5
	goldenTempAtCheck     = 100.0
	goldenSuccessTemp     = 500.0
	goldenMinSample       = 20
)

// metric describes one tunable parameter: where its population comes from
// and the band its value is allowed to move in.
type metric struct {
	key         string
	source      string // storage.MetricVelocity or storage.MetricViralScore
	minWinTemp  float64
	hoursWindow float64
	clampLo     float64
	clampHi     float64
}

// Two velocity keys feed the legacy kill/fast-rising gates that older config
// consumers still read; viral_threshold is the one the engine acts on.
var metrics = []metric{
	{key: "velocity_instant_kill", source: storage.MetricVelocity, minWinTemp: 200, hoursWindow: 0.25, clampLo: 1.0, clampHi: 5.0},
	{key: "velocity_fast_rising", source: storage.MetricVelocity, minWinTemp: 100, hoursWindow: 0.5, clampLo: 0.5, clampHi: 3.0},
	{key: "viral_threshold", source: storage.MetricViralScore, minWinTemp: 200, hoursWindow: 0.5, clampLo: 20.0, clampHi: 150.0},
}

// Store is the slice of the storage layer the tuner reads and writes.
type Store interface {
	WinnerMetricValues(ctx context.Context, metric string, minTemp, hoursWindow float64) ([]float64, error)
	ConditionalProbability(ctx context.Context, checkpointHours, minTempAtCheckpoint, successTemp float64) (storage.ConditionalProbabilityResult, error)
	SystemConfig(ctx context.Context) (map[string]float64, error)
	SetSystemConfigBulk(ctx context.Context, values map[string]float64) error
}

// Reconfigurable is the engine-side hook: swap in a new config snapshot.
type Reconfigurable interface {
	Reconfigure(cfg scoring.Config)
}

// Trainer is an optional model retrained on the same cadence.
type Trainer interface {
	Train(ctx context.Context) error
}

type AutoTuner struct {
	store   Store
	engine  Reconfigurable
	trainer Trainer
}

// New creates a tuner. trainer may be nil.
func New(store Store, engine Reconfigurable, trainer Trainer) *AutoTuner {
	return &AutoTuner{store: store, engine: engine, trainer: trainer}
}

// RunCycle recomputes every metric, persists the changes, and hot-swaps the
// engine's config from the stored state. Metrics are isolated: one failing or
// under-populated metric leaves the others free to update.
func (t *AutoTuner) RunCycle(ctx context.Context) error {
	updates := make(map[string]float64)
	for _, m := range metrics {
		value, ok := t.computeMetric(ctx, m)
		if ok {
			updates[m.key] = value
		}
	}

	if len(updates) > 0 {
		if err := t.store.SetSystemConfigBulk(ctx, updates); err != nil {
			return err
		}
	}

	// Reload the full stored state rather than trusting the in-memory deltas,
	// so manual config edits land on the same path.
	stored, err := t.store.SystemConfig(ctx)
	if err != nil {
		return err
	}
	t.engine.Reconfigure(scoring.FromMap(stored))

	t.logGoldenRatio(ctx)

	if t.trainer != nil {
		if err := t.trainer.Train(ctx); err != nil {
			slog.Debug("Shadow predictor training skipped", "error", err)
		}
	}

	slog.Info("Tuning cycle complete", "updated", len(updates))
	return nil
}

// computeMetric runs one metric's percentile. Returns false when the
// population is too thin or the query fails.
func (t *AutoTuner) computeMetric(ctx context.Context, m metric) (float64, bool) {
	values, err := t.store.WinnerMetricValues(ctx, m.source, m.minWinTemp, m.hoursWindow)
	if err != nil {
		slog.Error("Metric population query failed", "metric", m.key, "error", err)
		return 0, false
	}
	if len(values) < minPopulation {
		slog.Info("Metric population too small, keeping current value",
			"metric", m.key, "population", len(values), "required", minPopulation)
		return 0, false
	}

	sort.Float64s(values)
	p20 := stat.Quantile(winnerPercentile, stat.Empirical, values, nil)
	tuned := clamp(p20, m.clampLo, m.clampHi)

	slog.Info("Metric tuned",
		"metric", m.key, "population", len(values), "p20", p20, "value", tuned)
	return tuned, true
}

// logGoldenRatio reports the early-momentum success probability. Diagnostic
// only; nothing is tuned from it yet.
func (t *AutoTuner) logGoldenRatio(ctx context.Context) {
	res, err := t.store.ConditionalProbability(ctx, goldenCheckpointHours, goldenTempAtCheck, goldenSuccessTemp)
	if err != nil {
		slog.Error("Golden ratio query failed", "error", err)
		return
	}
	if res.SampleSize < goldenMinSample {
		slog.Info("Golden ratio sample too small", "sample", res.SampleSize, "required", goldenMinSample)
		return
	}
	slog.Info("Golden ratio",
		"probability", res.Probability, "sample", res.SampleSize, "successes", res.Successes)
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
