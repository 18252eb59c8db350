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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/scancell/pkg/models"
)

func TestPredictAndSave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/inference/run", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/captures/grid_1_1.jpg", req["image_path"])
		assert.Equal(t, "/captures/results", req["output_dir"])
		assert.Equal(t, true, req["save_overlay"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":           true,
			"inference_time_ms": 41.5,
			"mask_path":         "/captures/results/grid_1_1_mask.png",
			"overlay_path":      "/captures/results/grid_1_1_overlay.jpg",
			"defects": []map[string]any{
				{"type": "scratch", "class_id": 1, "pixel_count": 120, "area_ratio": 0.001, "severity": "minor"},
				{"type": "dent", "class_id": 2, "pixel_count": 9000, "area_ratio": 0.03},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)

	outcome, err := client.PredictAndSave(context.Background(), "/captures/grid_1_1.jpg", "/captures/results", true)
	require.NoError(t, err)

	assert.InDelta(t, 41.5, outcome.InferenceTimeMs, 0.001)
	assert.Equal(t, "/captures/results/grid_1_1_mask.png", outcome.MaskPath)
	require.Len(t, outcome.Defects, 2)
	assert.Equal(t, models.SeverityMinor, outcome.Defects[0].Severity)
	// Severity omitted by the service is derived from the area ratio.
	assert.Equal(t, models.SeverityMajor, outcome.Defects[1].Severity)
}

func TestPredictAndSaveRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "model not loaded",
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)

	_, err := client.PredictAndSave(context.Background(), "a.jpg", "out", false)
	require.ErrorIs(t, err, errInferenceRefused)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestPredictAndSaveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, time.Second)

	_, err := client.PredictAndSave(context.Background(), "a.jpg", "out", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
