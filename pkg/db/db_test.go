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

package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/scancell/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRecordEvent(t *testing.T) {
	store := openTestStore(t)

	err := store.RecordEvent(models.Event{
		ID:      "ev-1",
		Kind:    models.EventCycleComplete,
		Message: "captured grid_1_1.jpg",
		Time:    time.Now(),
	})
	require.NoError(t, err)

	// Duplicate IDs are rejected by the primary key.
	err = store.RecordEvent(models.Event{ID: "ev-1", Kind: models.EventLoopError, Time: time.Now()})
	require.Error(t, err)
}

func TestRecordAndReadOutcomes(t *testing.T) {
	store := openTestStore(t)

	first := &models.InferenceOutcome{
		BatchID:         "scan_20250612_093000",
		ImagePath:       "/captures/grid_1_1.jpg",
		OverlayPath:     "/captures/results/grid_1_1_overlay.jpg",
		InferenceTimeMs: 41.5,
		CapturedAt:      time.Date(2025, 6, 12, 9, 30, 1, 0, time.UTC),
		Defects: []models.Defect{
			{Type: "scratch", ClassID: 1, PixelCount: 120, AreaRatio: 0.001, Severity: models.SeverityMinor},
		},
	}
	require.NoError(t, store.RecordOutcome(first))

	second := &models.InferenceOutcome{
		BatchID:    "scan_20250612_093000",
		ImagePath:  "/captures/grid_1_2.jpg",
		CapturedAt: time.Date(2025, 6, 12, 9, 30, 2, 0, time.UTC),
	}
	require.NoError(t, store.RecordOutcome(second))

	outcomes, err := store.RecentOutcomes(10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	// Newest first.
	assert.Equal(t, "/captures/grid_1_2.jpg", outcomes[0].ImagePath)
	assert.Empty(t, outcomes[0].Defects)

	assert.Equal(t, "/captures/grid_1_1.jpg", outcomes[1].ImagePath)
	assert.Equal(t, "/captures/results/grid_1_1_overlay.jpg", outcomes[1].OverlayPath)
	assert.InDelta(t, 41.5, outcomes[1].InferenceTimeMs, 0.001)
	require.Len(t, outcomes[1].Defects, 1)
	assert.Equal(t, "scratch", outcomes[1].Defects[0].Type)
}

func TestRecentOutcomesLimit(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordOutcome(&models.InferenceOutcome{
			BatchID:    "b",
			ImagePath:  "img",
			CapturedAt: time.Now(),
		}))
	}

	outcomes, err := store.RecentOutcomes(3)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)
}

func TestOpenReusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordEvent(models.Event{ID: "ev-1", Kind: models.EventBatchStarted, Time: time.Now()}))
	require.NoError(t, store.Close())

	// Reopening must not recreate the schema destructively.
	store, err = Open(path)
	require.NoError(t, err)

	defer store.Close()

	require.NoError(t, store.RecordEvent(models.Event{ID: "ev-2", Kind: models.EventBatchReset, Time: time.Now()}))
}
