package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avaldezmx/promopulse/internal/models"
)

// ProcessObservation persists an observation as one unit of work: upsert the
// deal by URL and append the scored history snapshot, committing both or
// neither. On failure the deal's state is exactly as before the call and the
// item will be re-evaluated next cycle.
func (s *Store) ProcessObservation(ctx context.Context, obs models.Observation, viralScore float64, source string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin unit of work: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Unix()
	var dealID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO deals (url, title, merchant, image_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (url) DO UPDATE SET
			title     = excluded.title,
			merchant  = excluded.merchant,
			image_url = excluded.image_url
		RETURNING id`,
		obs.URL, obs.Title, obs.Merchant, obs.ImageURL, now).Scan(&dealID)
	if err != nil {
		return 0, fmt.Errorf("upsert deal %s: %w", obs.URL, err)
	}

	velocity := models.Velocity(obs.Temperature, obs.HoursSincePosted)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO deal_history (deal_id, temperature, velocity, viral_score, hours_since_posted, source, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		dealID, obs.Temperature, velocity, viralScore, obs.HoursSincePosted, source, now)
	if err != nil {
		return 0, fmt.Errorf("append snapshot for deal %d: %w", dealID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit unit of work for %s: %w", obs.URL, err)
	}
	return dealID, nil
}

// LatestSnapshot returns the newest history point for a URL, or ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context, url string) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT h.deal_id, h.temperature, h.velocity, h.viral_score, h.hours_since_posted, h.source, h.recorded_at
		FROM deal_history h
		JOIN deals d ON d.id = h.deal_id
		WHERE d.url = ?
		ORDER BY h.id DESC
		LIMIT 1`, url)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot for %s: %w", url, err)
	}
	return snap, nil
}

// LatestSnapshotsBatch returns the newest history point per URL in one query.
// URLs with no history are simply absent from the result.
func (s *Store) LatestSnapshotsBatch(ctx context.Context, urls []string) (map[string]*models.Snapshot, error) {
	result := make(map[string]*models.Snapshot, len(urls))
	if len(urls) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}

	query := fmt.Sprintf(`
		SELECT url, deal_id, temperature, velocity, viral_score, hours_since_posted, source, recorded_at
		FROM (
			SELECT d.url, h.deal_id, h.temperature, h.velocity, h.viral_score,
			       h.hours_since_posted, h.source, h.recorded_at,
			       ROW_NUMBER() OVER (PARTITION BY h.deal_id ORDER BY h.id DESC) AS rn
			FROM deal_history h
			JOIN deals d ON d.id = h.deal_id
			WHERE d.url IN (%s)
		)
		WHERE rn = 1`, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("batch latest snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u string
		var snap models.Snapshot
		var recorded int64
		if err := rows.Scan(&u, &snap.DealID, &snap.Temperature, &snap.Velocity,
			&snap.ViralScore, &snap.HoursSincePosted, &snap.Source, &recorded); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.RecordedAt = time.Unix(recorded, 0).UTC()
		result[u] = &snap
	}
	return result, rows.Err()
}

// GetDealByURL returns the stored deal identity, or ErrNotFound.
func (s *Store) GetDealByURL(ctx context.Context, url string) (*models.Deal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, merchant, image_url, max_seen_rating,
		       is_active, activity_status, created_at, last_tracked_at
		FROM deals WHERE url = ?`, url)
	return scanDeal(row)
}

// ActiveDealsBatch returns up to limit active deals created within the last
// 24 hours, oldest-tracked first, for the tracker's rolling schedule.
func (s *Store) ActiveDealsBatch(ctx context.Context, limit int) ([]models.Deal, error) {
	cutoff := s.now().UTC().Add(-24 * time.Hour).Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, merchant, image_url, max_seen_rating,
		       is_active, activity_status, created_at, last_tracked_at
		FROM deals
		WHERE is_active = 1 AND created_at >= ?
		ORDER BY last_tracked_at ASC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("active deals batch: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}
	return deals, rows.Err()
}

// Deactivate marks a deal inactive with the given status reason. Deals are
// never deleted.
func (s *Store) Deactivate(ctx context.Context, dealID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deals SET is_active = 0, activity_status = ? WHERE id = ?`, status, dealID)
	if err != nil {
		return fmt.Errorf("deactivate deal %d: %w", dealID, err)
	}
	return nil
}

// TouchTracked stamps last_tracked_at so the tracker's oldest-first ordering
// rotates through the active set.
func (s *Store) TouchTracked(ctx context.Context, dealID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deals SET last_tracked_at = ? WHERE id = ?`, s.now().UTC().Unix(), dealID)
	if err != nil {
		return fmt.Errorf("touch deal %d: %w", dealID, err)
	}
	return nil
}

// MaxRating returns the highest rating ever notified for a URL; zero for
// unknown deals.
func (s *Store) MaxRating(ctx context.Context, url string) (int, error) {
	var rating int
	err := s.db.QueryRowContext(ctx,
		`SELECT max_seen_rating FROM deals WHERE url = ?`, url).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("max rating for %s: %w", url, err)
	}
	return rating, nil
}

// UpdateMaxRating raises the recorded max rating. Monotonic: a lower value
// never overwrites a higher one.
func (s *Store) UpdateMaxRating(ctx context.Context, url string, rating int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deals SET max_seen_rating = ? WHERE url = ? AND max_seen_rating < ?`,
		rating, url, rating)
	if err != nil {
		return fmt.Errorf("update max rating for %s: %w", url, err)
	}
	return nil
}

// MaxTemperature returns the highest temperature across a deal's history.
func (s *Store) MaxTemperature(ctx context.Context, dealID int64) (float64, error) {
	var maxTemp sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(temperature) FROM deal_history WHERE deal_id = ?`, dealID).Scan(&maxTemp)
	if err != nil {
		return 0, fmt.Errorf("max temperature for deal %d: %w", dealID, err)
	}
	return maxTemp.Float64, nil
}

// FirstHoursAtOrAbove returns the earliest hours-since-posted at which a
// deal's recorded temperature reached temp, or nil if it never did.
func (s *Store) FirstHoursAtOrAbove(ctx context.Context, dealID int64, temp float64) (*float64, error) {
	var hours sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MIN(hours_since_posted) FROM deal_history WHERE deal_id = ? AND temperature >= ?`,
		dealID, temp).Scan(&hours)
	if err != nil {
		return nil, fmt.Errorf("first hours at %.0f for deal %d: %w", temp, dealID, err)
	}
	if !hours.Valid {
		return nil, nil
	}
	return &hours.Float64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (*models.Deal, error) {
	var deal models.Deal
	var active int
	var created, tracked int64
	err := row.Scan(&deal.ID, &deal.URL, &deal.Title, &deal.Merchant, &deal.ImageURL,
		&deal.MaxSeenRating, &active, &deal.ActivityStatus, &created, &tracked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan deal: %w", err)
	}
	deal.IsActive = active == 1
	deal.CreatedAt = time.Unix(created, 0).UTC()
	if tracked > 0 {
		deal.LastTrackedAt = time.Unix(tracked, 0).UTC()
	}
	return &deal, nil
}

func scanSnapshot(row rowScanner) (*models.Snapshot, error) {
	var snap models.Snapshot
	var recorded int64
	err := row.Scan(&snap.DealID, &snap.Temperature, &snap.Velocity, &snap.ViralScore,
		&snap.HoursSincePosted, &snap.Source, &recorded)
	if err != nil {
		return nil, err
	}
	snap.RecordedAt = time.Unix(recorded, 0).UTC()
	return &snap, nil
}
