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

package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
)

type recordingHistory struct {
	events   []models.Event
	outcomes []*models.InferenceOutcome
	fail     bool
}

func (h *recordingHistory) RecordEvent(ev models.Event) error {
	if h.fail {
		return errors.New("disk full")
	}

	h.events = append(h.events, ev)

	return nil
}

func (h *recordingHistory) RecordOutcome(o *models.InferenceOutcome) error {
	if h.fail {
		return errors.New("disk full")
	}

	h.outcomes = append(h.outcomes, o)

	return nil
}

func TestAddEventAssignsIDs(t *testing.T) {
	sink := NewSink(logger.NewTestLogger())

	sink.AddEvent(models.EventCycleComplete, "captured grid_1_1.jpg")
	sink.AddEvent(models.EventLoopError, "read gate failed")

	events := sink.Events(0)
	require.Len(t, events, 2)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEmpty(t, events[1].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.False(t, events[0].Time.IsZero())
}

func TestEventsMostRecentFirst(t *testing.T) {
	sink := NewSink(logger.NewTestLogger())

	for i := 0; i < 5; i++ {
		sink.AddEvent(models.EventCycleComplete, fmt.Sprintf("cycle %d", i))
	}

	events := sink.Events(3)
	require.Len(t, events, 3)
	assert.Equal(t, "cycle 4", events[0].Message)
	assert.Equal(t, "cycle 3", events[1].Message)
	assert.Equal(t, "cycle 2", events[2].Message)
}

func TestRingBounded(t *testing.T) {
	sink := NewSink(logger.NewTestLogger(), WithRingSize(4))

	for i := 0; i < 10; i++ {
		sink.AddEvent(models.EventCycleComplete, fmt.Sprintf("cycle %d", i))
	}

	events := sink.Events(0)
	require.Len(t, events, 4)
	assert.Equal(t, "cycle 9", events[0].Message)
	assert.Equal(t, "cycle 6", events[3].Message)
}

func TestSetOutcomeCopies(t *testing.T) {
	sink := NewSink(logger.NewTestLogger())

	assert.Nil(t, sink.LatestOutcome())

	outcome := &models.InferenceOutcome{
		BatchID:   "scan_20250612_093000",
		ImagePath: "grid_1_1.jpg",
		Defects: []models.Defect{
			{Type: "scratch", Severity: models.SeverityMinor},
		},
	}
	sink.SetOutcome(outcome)

	got := sink.LatestOutcome()
	require.NotNil(t, got)
	assert.Equal(t, outcome.BatchID, got.BatchID)

	// Mutating the copy must not leak back into the sink.
	got.Defects[0].Type = "dent"
	assert.Equal(t, "scratch", sink.LatestOutcome().Defects[0].Type)
}

func TestSnapshotAssemblesSuppliers(t *testing.T) {
	conn := models.ConnectionStatus{Host: "192.168.3.250", Port: 5007, Connected: true}
	batch := &models.BatchStatus{ID: "scan_20250612_093000", Group: 2, Position: 3}

	sink := NewSink(logger.NewTestLogger(),
		WithConnectionStatus(func() models.ConnectionStatus { return conn }),
		WithBatchStatus(func() *models.BatchStatus { return batch }),
	)

	sink.SetPolling(true)
	sink.AddEvent(models.EventBatchStarted, "batch started")

	snap := sink.Snapshot()
	assert.True(t, snap.Polling)
	assert.Equal(t, conn, snap.Connection)
	require.NotNil(t, snap.Batch)
	assert.Equal(t, "scan_20250612_093000", snap.Batch.ID)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, models.EventBatchStarted, snap.Events[0].Kind)
}

func TestSnapshotWithoutSuppliers(t *testing.T) {
	sink := NewSink(logger.NewTestLogger())

	snap := sink.Snapshot()
	assert.False(t, snap.Polling)
	assert.Nil(t, snap.Batch)
	assert.Nil(t, snap.LastOutcome)
	assert.Empty(t, snap.Events)
}

func TestHistoryForwarding(t *testing.T) {
	history := &recordingHistory{}
	sink := NewSink(logger.NewTestLogger(), WithHistory(history))

	sink.AddEvent(models.EventCycleComplete, "done")
	sink.SetOutcome(&models.InferenceOutcome{BatchID: "b"})

	require.Len(t, history.events, 1)
	assert.Equal(t, models.EventCycleComplete, history.events[0].Kind)
	require.Len(t, history.outcomes, 1)
}

func TestHistoryErrorsAreSwallowed(t *testing.T) {
	history := &recordingHistory{fail: true}
	sink := NewSink(logger.NewTestLogger(), WithHistory(history))

	sink.AddEvent(models.EventCycleComplete, "done")
	sink.SetOutcome(&models.InferenceOutcome{BatchID: "b"})

	// The in-memory record is unaffected by store failures.
	assert.Len(t, sink.Events(0), 1)
	assert.NotNil(t, sink.LatestOutcome())
}
