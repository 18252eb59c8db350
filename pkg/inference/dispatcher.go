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

package inference

import (
	"context"
	"path/filepath"
	"time"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
)

// OutcomeRecorder receives the latest successful outcome. The status
// sink implements it.
type OutcomeRecorder interface {
	SetOutcome(outcome *models.InferenceOutcome)
}

// Dispatcher hands persisted images to the predictor and records the
// result. Inference is never retried for the same trigger; a failure
// is the caller's signal to move on to the next cycle.
type Dispatcher struct {
	predictor   Predictor
	recorder    OutcomeRecorder
	saveOverlay bool
	now         func() time.Time
	logger      logger.Logger
}

func NewDispatcher(predictor Predictor, recorder OutcomeRecorder, saveOverlay bool, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Dispatcher{
		predictor:   predictor,
		recorder:    recorder,
		saveOverlay: saveOverlay,
		now:         time.Now,
		logger:      log,
	}
}

// Infer classifies the image at imagePath, writing result artifacts to
// the batch's results folder. On success the process-wide latest
// outcome is replaced; it is never queued.
func (d *Dispatcher) Infer(ctx context.Context, imagePath, batchID, batchDir string) (*models.InferenceOutcome, error) {
	outputDir := filepath.Join(batchDir, "results")

	outcome, err := d.predictor.PredictAndSave(ctx, imagePath, outputDir, d.saveOverlay)
	if err != nil {
		d.logger.Error().Err(err).Str("image", imagePath).Msg("Inference failed")
		return nil, err
	}

	outcome.ImagePath = imagePath
	outcome.BatchID = batchID
	outcome.CapturedAt = d.now()

	if d.recorder != nil {
		d.recorder.SetOutcome(outcome)
	}

	d.logger.Info().
		Str("image", imagePath).
		Int("defects", len(outcome.Defects)).
		Float64("inference_ms", outcome.InferenceTimeMs).
		Msg("Inference completed")

	return outcome, nil
}
