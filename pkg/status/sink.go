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

// Package status is the cell's last-known-state record: a bounded
// event log plus the latest inference outcome, exposed to the API
// layer through copy-out accessors instead of shared globals.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
)

const defaultRingSize = 256

// History is the optional persistent backing for events and outcomes.
// *db.Store implements it.
type History interface {
	RecordEvent(ev models.Event) error
	RecordOutcome(o *models.InferenceOutcome) error
}

// Sink owns the shared mutable status state. All accessors copy values
// out; callers never hold references into the sink.
type Sink struct {
	mu      sync.Mutex
	events  []models.Event
	ring    int
	latest  *models.InferenceOutcome
	polling bool

	connStatus  func() models.ConnectionStatus
	batchStatus func() *models.BatchStatus

	history History
	now     func() time.Time
	logger  logger.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithRingSize bounds the in-memory event log.
func WithRingSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.ring = n
		}
	}
}

// WithHistory attaches a persistent store. Store errors are logged and
// never surfaced; the in-memory record is the source of truth for the
// status surface.
func WithHistory(h History) Option {
	return func(s *Sink) { s.history = h }
}

// WithConnectionStatus attaches the PLC manager's snapshot supplier.
func WithConnectionStatus(fn func() models.ConnectionStatus) Option {
	return func(s *Sink) { s.connStatus = fn }
}

// WithBatchStatus attaches the batch tracker's snapshot supplier.
func WithBatchStatus(fn func() *models.BatchStatus) Option {
	return func(s *Sink) { s.batchStatus = fn }
}

func NewSink(log logger.Logger, opts ...Option) *Sink {
	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &Sink{
		ring:   defaultRingSize,
		now:    time.Now,
		logger: log,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AddEvent appends an event, evicting the oldest entry once the ring
// is full.
func (s *Sink) AddEvent(kind, message string) {
	ev := models.Event{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: message,
		Time:    s.now(),
	}

	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.ring {
		s.events = s.events[len(s.events)-s.ring:]
	}
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.RecordEvent(ev); err != nil {
			s.logger.Warn().Err(err).Str("kind", kind).Msg("Failed to persist event")
		}
	}
}

// SetOutcome replaces the latest inference outcome.
func (s *Sink) SetOutcome(outcome *models.InferenceOutcome) {
	s.mu.Lock()
	s.latest = outcome
	s.mu.Unlock()

	if s.history != nil && outcome != nil {
		if err := s.history.RecordOutcome(outcome); err != nil {
			s.logger.Warn().Err(err).Str("image", outcome.ImagePath).Msg("Failed to persist outcome")
		}
	}
}

// LatestOutcome returns a copy of the most recent outcome, or nil.
func (s *Sink) LatestOutcome() *models.InferenceOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	return copyOutcome(s.latest)
}

// SetPolling records whether the poll loop is running.
func (s *Sink) SetPolling(polling bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.polling = polling
}

// Events returns up to n events, most recent first.
func (s *Sink) Events(n int) []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > len(s.events) {
		n = len(s.events)
	}

	out := make([]models.Event, n)
	for i := range out {
		out[i] = s.events[len(s.events)-1-i]
	}

	return out
}

// Snapshot assembles the full status surface.
func (s *Sink) Snapshot() models.CellStatus {
	var (
		conn  models.ConnectionStatus
		batch *models.BatchStatus
	)

	if s.connStatus != nil {
		conn = s.connStatus()
	}

	if s.batchStatus != nil {
		batch = s.batchStatus()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]models.Event, len(s.events))
	for i := range events {
		events[i] = s.events[len(s.events)-1-i]
	}

	return models.CellStatus{
		Connection:  conn,
		Polling:     s.polling,
		LastOutcome: copyOutcome(s.latest),
		Batch:       batch,
		Events:      events,
	}
}

func copyOutcome(o *models.InferenceOutcome) *models.InferenceOutcome {
	if o == nil {
		return nil
	}

	cp := *o
	cp.Defects = append([]models.Defect(nil), o.Defects...)

	return &cp
}
