/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package db persists the cell's event log and inference history in an
// embedded sqlite database so operators can review past scans after a
// restart.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/carverauto/scancell/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	message TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL,
	image_path TEXT NOT NULL,
	overlay_path TEXT,
	inference_ms DOUBLE NOT NULL,
	defect_count INTEGER NOT NULL,
	defects_json TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_batch ON outcomes(batch_id);
`

// Store is the history store. Methods are safe for concurrent use via
// database/sql's own pooling.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: sqlDB}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent appends one event to the log.
func (s *Store) RecordEvent(ev models.Event) error {
	_, err := s.db.Exec(
		"INSERT INTO events (id, kind, message, created_at) VALUES (?, ?, ?, ?)",
		ev.ID, ev.Kind, ev.Message, ev.Time,
	)

	return err
}

// RecordOutcome appends one inference outcome.
func (s *Store) RecordOutcome(o *models.InferenceOutcome) error {
	defects, err := json.Marshal(o.Defects)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO outcomes (batch_id, image_path, overlay_path, inference_ms, defect_count, defects_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.BatchID, o.ImagePath, o.OverlayPath, o.InferenceTimeMs, len(o.Defects), string(defects), o.CapturedAt,
	)

	return err
}

// RecentOutcomes returns up to n outcomes, newest first.
func (s *Store) RecentOutcomes(n int) ([]models.InferenceOutcome, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, image_path, overlay_path, inference_ms, defects_json, created_at
		 FROM outcomes ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []models.InferenceOutcome

	for rows.Next() {
		var (
			o           models.InferenceOutcome
			overlay     sql.NullString
			defectsJSON sql.NullString
			createdAt   time.Time
		)

		if err := rows.Scan(&o.BatchID, &o.ImagePath, &overlay, &o.InferenceTimeMs, &defectsJSON, &createdAt); err != nil {
			return nil, err
		}

		o.OverlayPath = overlay.String
		o.CapturedAt = createdAt

		if defectsJSON.Valid && defectsJSON.String != "" {
			if err := json.Unmarshal([]byte(defectsJSON.String), &o.Defects); err != nil {
				return nil, err
			}
		}

		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
