// Package predictor provides the optional shadow model estimating a deal's
// eventual maximum temperature. It runs in shadow mode only: estimates are
// logged next to the heuristic verdict and never influence it.
package predictor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// ErrNotTrained is returned until enough outcome-joined history exists to
// fit the model.
var ErrNotTrained = errors.New("predictor: model not trained")

// minTrainingSamples is the smallest population worth fitting a line to.
const minTrainingSamples = 30

// Sample pairs an early-checkpoint reading with the deal's final outcome.
type Sample struct {
	Velocity     float64 // degrees/minute at the checkpoint
	Temperature  float64 // temperature at the checkpoint
	FinalMaxTemp float64
}

// TrainingSource yields outcome-joined checkpoint samples from history.
type TrainingSource interface {
	TrainingSamples(ctx context.Context, checkpointHours float64) ([]Sample, error)
}

// Baseline is a least-squares fit of log1p(final max temp) against checkpoint
// velocity. A deliberately simple stand-in for a richer regressor: same
// feature shape, same log-compressed target, retrainable in-process.
type Baseline struct {
	source          TrainingSource
	checkpointHours float64

	mu        sync.RWMutex
	alpha     float64
	beta      float64
	trained   bool
	trainedAt time.Time
}

// NewBaseline creates an untrained model reading samples at the given
// checkpoint (hours since posting).
func NewBaseline(source TrainingSource, checkpointHours float64) *Baseline {
	return &Baseline{source: source, checkpointHours: checkpointHours}
}

// Train refits the model from the current history. Safe to call periodically;
// concurrent predictions keep using the previous fit until the swap.
func (b *Baseline) Train(ctx context.Context) error {
	samples, err := b.source.TrainingSamples(ctx, b.checkpointHours)
	if err != nil {
		return err
	}
	if len(samples) < minTrainingSamples {
		return ErrNotTrained
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.Velocity
		// Log-compress the target so outlier mega-deals don't dominate the fit.
		ys[i] = math.Log1p(s.FinalMaxTemp)
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return ErrNotTrained
	}

	b.mu.Lock()
	b.alpha = alpha
	b.beta = beta
	b.trained = true
	b.trainedAt = time.Now()
	b.mu.Unlock()

	slog.Info("Shadow predictor trained",
		"samples", len(samples), "alpha", alpha, "beta", beta)
	return nil
}

// PredictMaxTemp estimates the eventual maximum temperature from the current
// reading. Returns ErrNotTrained before the first successful Train.
func (b *Baseline) PredictMaxTemp(_ context.Context, temperature, velocity float64, _ time.Time) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.trained {
		return 0, ErrNotTrained
	}
	predicted := math.Expm1(b.alpha + b.beta*velocity)
	// The deal can't end below where it already is.
	return math.Max(predicted, temperature), nil
}
