package storage

import (
	"context"
	"fmt"
)

// SystemConfig loads the full named-parameter map.
func (s *Store) SystemConfig(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM system_config`)
	if err != nil {
		return nil, fmt.Errorf("load system config: %w", err)
	}
	defer rows.Close()

	config := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		config[key] = value
	}
	return config, rows.Err()
}

// SetSystemConfigBulk upserts multiple parameters in one transaction.
func (s *Store) SetSystemConfigBulk(ctx context.Context, values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config update: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Unix()
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO system_config (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now)
		if err != nil {
			return fmt.Errorf("upsert config %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Subscribers returns every subscribed chat ID.
func (s *Store) Subscribers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSubscriber registers a chat ID. Returns true if it was new.
func (s *Store) AddSubscriber(ctx context.Context, chatID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (chat_id, created_at) VALUES (?, ?) ON CONFLICT (chat_id) DO NOTHING`,
		chatID, s.now().UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("add subscriber %s: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveSubscriber drops a chat ID.
func (s *Store) RemoveSubscriber(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("remove subscriber %s: %w", chatID, err)
	}
	return nil
}
