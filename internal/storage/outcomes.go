package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avaldezmx/promopulse/internal/models"
)

// GetOutcome returns a deal's outcome record, or ErrNotFound.
func (s *Store) GetOutcome(ctx context.Context, dealID int64) (*models.Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT deal_id, final_max_temp, reached_200, reached_500, reached_1000, time_to_200_mins, updated_at
		FROM deal_outcomes WHERE deal_id = ?`, dealID)

	var out models.Outcome
	var r200, r500, r1000 int
	var timeTo200 sql.NullFloat64
	var updated int64
	err := row.Scan(&out.DealID, &out.FinalMaxTemp, &r200, &r500, &r1000, &timeTo200, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get outcome for deal %d: %w", dealID, err)
	}
	out.Reached200 = r200 == 1
	out.Reached500 = r500 == 1
	out.Reached1000 = r1000 == 1
	if timeTo200.Valid {
		out.TimeTo200Mins = &timeTo200.Float64
	}
	out.UpdatedAt = time.Unix(updated, 0).UTC()
	return &out, nil
}

// UpsertOutcome creates or raises a deal's outcome record. Monotonic: the
// stored max temperature only grows, threshold flags only flip on, and
// time-to-200 is kept once set.
func (s *Store) UpsertOutcome(ctx context.Context, dealID int64, maxTemp float64, timeTo200Mins *float64) error {
	now := s.now().UTC().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deal_outcomes (deal_id, final_max_temp, reached_200, reached_500, reached_1000, time_to_200_mins, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (deal_id) DO UPDATE SET
			final_max_temp   = MAX(final_max_temp, excluded.final_max_temp),
			reached_200      = MAX(reached_200, excluded.reached_200),
			reached_500      = MAX(reached_500, excluded.reached_500),
			reached_1000     = MAX(reached_1000, excluded.reached_1000),
			time_to_200_mins = COALESCE(time_to_200_mins, excluded.time_to_200_mins),
			updated_at       = excluded.updated_at`,
		dealID, maxTemp, flag(maxTemp >= 200), flag(maxTemp >= 500), flag(maxTemp >= 1000),
		nullable(timeTo200Mins), now)
	if err != nil {
		return fmt.Errorf("upsert outcome for deal %d: %w", dealID, err)
	}
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
