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

// Package poller drives the scan cell: it polls the controller for the
// gate and trigger bits, and on each rising trigger edge runs one
// capture-inference-feedback cycle.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/scancell/pkg/edge"
	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
	"github.com/carverauto/scancell/pkg/scan"
)

const stopTimeout = 10 * time.Second

// Deps are the collaborators the loop coordinates. All PLC I/O goes
// through the connection manager; the loop never touches the socket.
type Deps struct {
	PLC       PLC
	Camera    Capturer
	Inference Inferrer
	Tracker   *scan.Tracker
	Sink      EventSink
}

// Poller runs the poll loop. One loop goroutine; cycles never overlap,
// so triggers faster than a full cycle are coalesced into the next
// tick's edge observation.
type Poller struct {
	config Config
	deps   Deps
	edges  *edge.Detector
	clock  Clock
	ticker Ticker
	logger logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a new poller instance.
func New(config *Config, deps Deps, clock Clock, log logger.Logger) (*Poller, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poller config: %w", err)
	}

	if clock == nil {
		clock = realClock{}
	}

	return &Poller{
		config: *config,
		deps:   deps,
		edges:  edge.NewDetector(),
		clock:  clock,
		logger: log,
		done:   make(chan struct{}),
	}, nil
}

// Start implements the lifecycle.Service interface. It blocks until
// ctx is canceled or Stop is called; cycle errors never end the loop.
func (p *Poller) Start(ctx context.Context) error {
	interval := time.Duration(p.config.PollInterval)
	p.ticker = p.clock.Ticker(interval)

	defer p.ticker.Stop()

	p.logger.Info().
		Dur("interval", interval).
		Str("gate", p.config.GateDevice).
		Strs("triggers", p.config.TriggerDevices).
		Msg("Starting poll loop")

	p.deps.Sink.SetPolling(true)
	defer p.deps.Sink.SetPolling(false)

	p.wg.Add(1)
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-p.ticker.Chan():
			if err := p.cycle(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Error during poll cycle")
				p.deps.Sink.AddEvent(models.EventLoopError, err.Error())
				p.clock.Sleep(ctx, time.Duration(p.config.ErrorBackoff))
			}
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (p *Poller) Stop(ctx context.Context) error {
	_, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	p.closeOnce.Do(func() {
		close(p.done)
	})

	p.wg.Wait()

	return nil
}

// StartBatch starts a scan batch immediately instead of waiting for
// the first trigger.
func (p *Poller) StartBatch() (*models.BatchStatus, error) {
	if _, err := p.deps.Tracker.Start(p.config.CaptureRoot); err != nil {
		return nil, err
	}

	status := p.deps.Tracker.Status()
	p.deps.Sink.AddEvent(models.EventBatchStarted, fmt.Sprintf("batch %s started", status.ID))

	return status, nil
}

// ResetBatch clears the active batch; captured files stay on disk.
func (p *Poller) ResetBatch() {
	p.deps.Tracker.Reset()
	p.edges.Reset()
	p.deps.Sink.AddEvent(models.EventBatchReset, "batch reset")
}

// cycle runs one poll iteration: gate check, trigger edge scan, and a
// full capture run per rising edge.
func (p *Poller) cycle(ctx context.Context) error {
	gate, err := p.deps.PLC.ReadBits(ctx, p.config.GateDevice, 1)
	if err != nil {
		return fmt.Errorf("read gate %s: %w", p.config.GateDevice, err)
	}

	if gate[0] == 0 {
		return nil
	}

	for _, device := range p.config.TriggerDevices {
		bits, err := p.deps.PLC.ReadBits(ctx, device, 1)
		if err != nil {
			return fmt.Errorf("read trigger %s: %w", device, err)
		}

		if !p.edges.Observe(device, bits[0]) {
			continue
		}

		if err := p.runTrigger(ctx, device); err != nil {
			return err
		}
	}

	return nil
}

// runTrigger handles one rising edge end to end. Capture failure skips
// inference and feedback; inference failure is recorded but the
// feedback bit is still pulsed so the line keeps moving.
func (p *Poller) runTrigger(ctx context.Context, device string) error {
	marker, err := p.deps.PLC.ReadSignedWords(ctx, p.config.MarkerDevice, 1)
	if err != nil {
		return fmt.Errorf("read marker %s: %w", p.config.MarkerDevice, err)
	}

	fresh := p.deps.Tracker.Status() == nil

	batch, err := p.deps.Tracker.CurrentOrStart(p.config.CaptureRoot)
	if err != nil {
		return fmt.Errorf("start batch: %w", err)
	}

	if fresh {
		p.deps.Sink.AddEvent(models.EventBatchStarted, fmt.Sprintf("batch %s started", batch.ID))
	}

	path, err := p.deps.Tracker.NextPath(marker[0])
	if err != nil {
		return fmt.Errorf("next capture path: %w", err)
	}

	p.logger.Debug().
		Str("trigger", device).
		Int32("marker", marker[0]).
		Str("path", path).
		Msg("Rising edge")

	if !p.deps.Camera.Capture(ctx, path) {
		return nil
	}

	if _, err := p.deps.Inference.Infer(ctx, path, batch.ID, batch.Dir); err != nil {
		p.logger.Error().Err(err).Str("image", path).Msg("Inference failed")
		p.deps.Sink.AddEvent(models.EventInferenceFailed, err.Error())
	} else {
		p.deps.Sink.AddEvent(models.EventCycleComplete, fmt.Sprintf("captured %s", path))
	}

	return p.pulseFeedback(ctx)
}

// pulseFeedback raises the handshake bit, holds it for the configured
// pulse width, and drops it.
func (p *Poller) pulseFeedback(ctx context.Context) error {
	if err := p.deps.PLC.WriteBits(ctx, p.config.FeedbackDevice, []byte{1}); err != nil {
		return fmt.Errorf("raise feedback %s: %w", p.config.FeedbackDevice, err)
	}

	p.clock.Sleep(ctx, time.Duration(p.config.FeedbackPulse))

	if err := p.deps.PLC.WriteBits(ctx, p.config.FeedbackDevice, []byte{0}); err != nil {
		return fmt.Errorf("drop feedback %s: %w", p.config.FeedbackDevice, err)
	}

	return nil
}
