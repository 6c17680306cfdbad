// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"admanager/internal/models"
)

// AdStore persists submitted ad payload snapshots. Each record belongs
// to one upstream user and is keyed by the upstream ad id.
type AdStore struct {
	db *sql.DB
}

// NewAdStore creates a new AdStore with the given database connection.
func NewAdStore(db *sql.DB) *AdStore {
	return &AdStore{db: db}
}

// Save inserts a record, or replaces the stored document if the user
// already has a record for that ad id.
func (s *AdStore) Save(userID, adID, document string) (*models.AdRecord, error) {
	r := &models.AdRecord{}
	err := s.db.QueryRow(`
		INSERT INTO ad_records (user_id, ad_id, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, ad_id)
		DO UPDATE SET document = EXCLUDED.document
		RETURNING id, user_id, ad_id, document, created_at
	`, userID, adID, document).Scan(
		&r.ID, &r.UserID, &r.AdID, &r.Document, &r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("save ad record: %w", err)
	}
	return r, nil
}

// Find retrieves a user's record for an ad id. Returns nil if not found.
func (s *AdStore) Find(userID, adID string) (*models.AdRecord, error) {
	r := &models.AdRecord{}
	err := s.db.QueryRow(`
		SELECT id, user_id, ad_id, document, created_at
		FROM ad_records
		WHERE user_id = $1 AND ad_id = $2
	`, userID, adID).Scan(
		&r.ID, &r.UserID, &r.AdID, &r.Document, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ad record: %w", err)
	}
	return r, nil
}

// ListByUser returns all of a user's records, newest first.
func (s *AdStore) ListByUser(userID string) ([]models.AdRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, ad_id, document, created_at
		FROM ad_records
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list ad records: %w", err)
	}
	defer rows.Close()

	var records []models.AdRecord
	for rows.Next() {
		var r models.AdRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.AdID, &r.Document, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ad record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes a user's record for an ad id. Deleting a record that
// does not exist is not an error.
func (s *AdStore) Delete(userID, adID string) error {
	if _, err := s.db.Exec(`
		DELETE FROM ad_records WHERE user_id = $1 AND ad_id = $2
	`, userID, adID); err != nil {
		return fmt.Errorf("delete ad record: %w", err)
	}
	return nil
}
