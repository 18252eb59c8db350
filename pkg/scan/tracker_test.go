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

package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStartCreatesBatchFolder(t *testing.T) {
	root := t.TempDir()
	started := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	tracker := NewTracker(fixedClock(started))

	batch, err := tracker.Start(root)
	require.NoError(t, err)

	assert.Equal(t, "scan_20250612_093000", batch.ID)
	assert.Equal(t, filepath.Join(root, "scan_20250612_093000"), batch.Dir)

	info, err := os.Stat(batch.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLazyCreationIsSingle(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	first, err := tracker.CurrentOrStart(root)
	require.NoError(t, err)

	second, err := tracker.CurrentOrStart(root)
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := tracker.Start(root)
	require.NoError(t, err)
	assert.Same(t, first, third)
}

func TestNextPathWithoutBatch(t *testing.T) {
	tracker := NewTracker(nil)

	_, err := tracker.NextPath(0)
	require.ErrorIs(t, err, errNoActiveBatch)
}

func TestNextPathPositionAdvances(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	batch, err := tracker.Start(root)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		path, err := tracker.NextPath(7)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(batch.Dir, fmt.Sprintf("grid_1_%d.jpg", i)), path)
	}
}

func TestNextPathMarkerRollover(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	batch, err := tracker.Start(root)
	require.NoError(t, err)

	path, err := tracker.NextPath(7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(batch.Dir, "grid_1_1.jpg"), path)

	path, err = tracker.NextPath(7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(batch.Dir, "grid_1_2.jpg"), path)

	// Marker change rolls the group and resets the position.
	path, err = tracker.NextPath(8)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(batch.Dir, "grid_2_1.jpg"), path)

	path, err = tracker.NextPath(8)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(batch.Dir, "grid_2_2.jpg"), path)
}

func TestFirstObservationDoesNotRoll(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	_, err := tracker.Start(root)
	require.NoError(t, err)

	// Whatever the first marker value is, it starts group 1.
	path, err := tracker.NextPath(-3)
	require.NoError(t, err)
	assert.Contains(t, path, "grid_1_1.jpg")
}

func TestResetClearsBatchKeepsFiles(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	batch, err := tracker.Start(root)
	require.NoError(t, err)

	tracker.Reset()
	assert.Nil(t, tracker.Status())

	// Folder survives the reset.
	_, err = os.Stat(batch.Dir)
	require.NoError(t, err)
}

func TestStatusSnapshot(t *testing.T) {
	root := t.TempDir()
	tracker := NewTracker(nil)

	assert.Nil(t, tracker.Status())

	_, err := tracker.Start(root)
	require.NoError(t, err)

	_, err = tracker.NextPath(4)
	require.NoError(t, err)

	status := tracker.Status()
	require.NotNil(t, status)
	assert.Equal(t, 1, status.Group)
	assert.Equal(t, 1, status.Position)
	assert.Equal(t, int32(4), status.Marker)
}
