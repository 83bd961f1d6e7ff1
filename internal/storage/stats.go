package storage

import (
	"context"
	"fmt"

	"github.com/avaldezmx/promopulse/internal/predictor"
)

// Metric names accepted by WinnerMetricValues.
const (
	MetricVelocity   = "velocity"
	MetricViralScore = "viral_score"
)

// ConditionalProbabilityResult is the "golden ratio" statistic: of deals that
// had at least minTempAtCheckpoint by the checkpoint, how many eventually
// reached the success temperature.
type ConditionalProbabilityResult struct {
	SampleSize  int
	Successes   int
	Probability float64
}

// WinnerMetricValues returns the chosen metric for every snapshot that (a)
// belongs to a deal whose temperature eventually reached minTemp and (b) was
// taken within hoursWindow of posting. This is the population the tuner runs
// percentiles over.
func (s *Store) WinnerMetricValues(ctx context.Context, metric string, minTemp, hoursWindow float64) ([]float64, error) {
	var column string
	switch metric {
	case MetricVelocity:
		column = "velocity"
	case MetricViralScore:
		column = "viral_score"
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	query := fmt.Sprintf(`
		WITH winners AS (
			SELECT deal_id FROM deal_history GROUP BY deal_id HAVING MAX(temperature) >= ?
		)
		SELECT %s
		FROM deal_history
		WHERE deal_id IN (SELECT deal_id FROM winners)
		  AND hours_since_posted <= ?
		  AND %s > 0`, column, column)

	rows, err := s.db.QueryContext(ctx, query, minTemp, hoursWindow)
	if err != nil {
		return nil, fmt.Errorf("winner %s population: %w", metric, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s value: %w", metric, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ConditionalProbability computes P(eventual max >= successTemp | temperature
// >= minTempAtCheckpoint within checkpointHours of posting).
func (s *Store) ConditionalProbability(ctx context.Context, checkpointHours, minTempAtCheckpoint, successTemp float64) (ConditionalProbabilityResult, error) {
	var res ConditionalProbabilityResult
	err := s.db.QueryRowContext(ctx, `
		WITH qualified AS (
			SELECT DISTINCT deal_id
			FROM deal_history
			WHERE hours_since_posted <= ? AND temperature >= ?
		),
		peaks AS (
			SELECT h.deal_id, MAX(h.temperature) AS max_temp
			FROM deal_history h
			JOIN qualified q ON q.deal_id = h.deal_id
			GROUP BY h.deal_id
		)
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN max_temp >= ? THEN 1 ELSE 0 END), 0)
		FROM peaks`,
		checkpointHours, minTempAtCheckpoint, successTemp).Scan(&res.SampleSize, &res.Successes)
	if err != nil {
		return res, fmt.Errorf("conditional probability: %w", err)
	}
	if res.SampleSize > 0 {
		res.Probability = float64(res.Successes) / float64(res.SampleSize)
	}
	return res, nil
}

// TrainingSamples joins each finalized deal's outcome with its last snapshot
// at or before the checkpoint, for the shadow predictor.
func (s *Store) TrainingSamples(ctx context.Context, checkpointHours float64) ([]predictor.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT h.velocity, h.temperature, o.final_max_temp
		FROM deal_outcomes o
		JOIN deal_history h ON h.id = (
			SELECT h2.id FROM deal_history h2
			WHERE h2.deal_id = o.deal_id AND h2.hours_since_posted <= ?
			ORDER BY h2.hours_since_posted DESC
			LIMIT 1
		)`, checkpointHours)
	if err != nil {
		return nil, fmt.Errorf("training samples: %w", err)
	}
	defer rows.Close()

	var samples []predictor.Sample
	for rows.Next() {
		var sample predictor.Sample
		if err := rows.Scan(&sample.Velocity, &sample.Temperature, &sample.FinalMaxTemp); err != nil {
			return nil, fmt.Errorf("scan training sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}
