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

// Package inference dispatches captured images to the defect-inference
// service and records the structured result for the status surface.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carverauto/scancell/pkg/models"
)

var errInferenceRefused = errors.New("inference service reported failure")

// Predictor is the inference collaborator contract. Model loading,
// backend selection and tensor processing live behind it.
type Predictor interface {
	PredictAndSave(ctx context.Context, imagePath, outputDir string, saveOverlay bool) (*models.InferenceOutcome, error)
}

// Inference runs a full model pass; give it more room than a status poll.
const defaultRequestTimeout = 30 * time.Second

// HTTPClient talks JSON to the inference service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type runRequest struct {
	ImagePath   string `json:"image_path"`
	OutputDir   string `json:"output_dir"`
	SaveOverlay bool   `json:"save_overlay"`
}

type defectPayload struct {
	Type       string  `json:"type"`
	ClassID    int     `json:"class_id"`
	PixelCount int     `json:"pixel_count"`
	AreaRatio  float64 `json:"area_ratio"`
	Severity   string  `json:"severity,omitempty"`
}

type runResponse struct {
	Success         bool            `json:"success"`
	InferenceTimeMs float64         `json:"inference_time_ms"`
	Defects         []defectPayload `json:"defects"`
	MaskPath        string          `json:"mask_path,omitempty"`
	OverlayPath     string          `json:"overlay_path,omitempty"`
	Message         string          `json:"message,omitempty"`
}

func (c *HTTPClient) PredictAndSave(
	ctx context.Context, imagePath, outputDir string, saveOverlay bool) (*models.InferenceOutcome, error) {
	body, err := json.Marshal(runRequest{
		ImagePath:   imagePath,
		OutputDir:   outputDir,
		SaveOverlay: saveOverlay,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/inference/run", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference request returned %d", resp.StatusCode)
	}

	var result runResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}

	if !result.Success {
		return nil, fmt.Errorf("%w: %s", errInferenceRefused, result.Message)
	}

	defects := make([]models.Defect, 0, len(result.Defects))

	for _, d := range result.Defects {
		severity := d.Severity
		if severity == "" {
			severity = models.SeverityForAreaRatio(d.AreaRatio)
		}

		defects = append(defects, models.Defect{
			Type:       d.Type,
			ClassID:    d.ClassID,
			PixelCount: d.PixelCount,
			AreaRatio:  d.AreaRatio,
			Severity:   severity,
		})
	}

	return &models.InferenceOutcome{
		Defects:         defects,
		InferenceTimeMs: result.InferenceTimeMs,
		MaskPath:        result.MaskPath,
		OverlayPath:     result.OverlayPath,
	}, nil
}
