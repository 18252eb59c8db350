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

// Package scan tracks the active scan batch: a timestamped output
// folder plus the grid position counter that names captured frames.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carverauto/scancell/pkg/models"
)

const batchTimeFormat = "20060102_150405"

// Batch is one production scan cycle's worth of captures. Mutated only
// through the tracker.
type Batch struct {
	ID        string
	Dir       string
	StartedAt time.Time

	position  int
	group     int
	marker    int32
	markerSet bool
}

// Tracker owns the single active batch. Safe for concurrent use; the
// poll loop and the start/reset commands from the API layer both call
// into it.
type Tracker struct {
	mu    sync.Mutex
	batch *Batch
	now   func() time.Time
}

// NewTracker creates a tracker. A nil now selects time.Now; tests
// inject a fixed clock.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}

	return &Tracker{now: now}
}

// Start returns the active batch, creating one (and its folder) under
// rootDir if none is active. Idempotent.
func (t *Tracker) Start(rootDir string) (*Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.startLocked(rootDir)
}

// CurrentOrStart is the lazy variant used when a trigger fires with no
// explicit scan-start command.
func (t *Tracker) CurrentOrStart(rootDir string) (*Batch, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.startLocked(rootDir)
}

func (t *Tracker) startLocked(rootDir string) (*Batch, error) {
	if t.batch != nil {
		return t.batch, nil
	}

	started := t.now()
	id := "scan_" + started.Format(batchTimeFormat)
	dir := filepath.Join(rootDir, id)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create batch folder: %w", err)
	}

	t.batch = &Batch{
		ID:        id,
		Dir:       dir,
		StartedAt: started,
		group:     1,
	}

	return t.batch, nil
}

// NextPath allocates the next capture path in the active batch. The
// position counter advances by one per call; when the rollover marker
// changes between observations the group advances instead and the
// position resets to 1.
func (t *Tracker) NextPath(marker int32) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch == nil {
		return "", errNoActiveBatch
	}

	b := t.batch

	switch {
	case !b.markerSet:
		b.markerSet = true
		b.marker = marker
		b.position++
	case marker != b.marker:
		b.marker = marker
		b.group++
		b.position = 1
	default:
		b.position++
	}

	name := fmt.Sprintf("grid_%d_%d.jpg", b.group, b.position)

	return filepath.Join(b.Dir, name), nil
}

// Reset clears the active batch reference. Files already on disk are
// kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batch = nil
}

// Status returns a snapshot of the active batch, or nil when none is
// active.
func (t *Tracker) Status() *models.BatchStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.batch == nil {
		return nil
	}

	b := t.batch

	return &models.BatchStatus{
		ID:        b.ID,
		Dir:       b.Dir,
		Position:  b.position,
		Group:     b.group,
		Marker:    b.marker,
		StartedAt: b.StartedAt,
	}
}
