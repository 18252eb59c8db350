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

// Package models defines the shared data types exchanged between the
// control loop, the PLC connection manager and the status surface.
package models

import "time"

// ConnectionStatus is a point-in-time snapshot of the PLC session. The
// socket itself never leaves the connection manager.
type ConnectionStatus struct {
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Connected   bool      `json:"connected"`
	LastError   string    `json:"last_error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Defect severity buckets derived from the defect's share of the image.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeverityMajor    = "major"
)

// Severity thresholds on area ratio.
const (
	minorAreaRatio    = 0.005
	moderateAreaRatio = 0.02
)

// Defect is a single detected region class in an inspected image.
type Defect struct {
	Type       string  `json:"type"`
	ClassID    int     `json:"class_id"`
	PixelCount int     `json:"pixel_count"`
	AreaRatio  float64 `json:"area_ratio"`
	Severity   string  `json:"severity"`
}

// SeverityForAreaRatio maps a defect's area ratio to a severity bucket.
func SeverityForAreaRatio(ratio float64) string {
	switch {
	case ratio < minorAreaRatio:
		return SeverityMinor
	case ratio < moderateAreaRatio:
		return SeverityModerate
	default:
		return SeverityMajor
	}
}

// InferenceOutcome is the structured result of one inference run. The
// latest outcome is retained process-wide for the status surface and
// overwritten on every successful run, never queued.
type InferenceOutcome struct {
	Defects         []Defect  `json:"defects"`
	InferenceTimeMs float64   `json:"inference_time_ms"`
	MaskPath        string    `json:"mask_path,omitempty"`
	OverlayPath     string    `json:"overlay_path,omitempty"`
	ImagePath       string    `json:"image_path"`
	BatchID         string    `json:"batch_id"`
	CapturedAt      time.Time `json:"captured_at"`
}

// Event kinds recorded by the status sink.
const (
	EventCycleComplete      = "cycle_complete"
	EventCaptureUnavailable = "capture_unavailable"
	EventInferenceFailed    = "inference_failed"
	EventLoopError          = "loop_error"
	EventBatchStarted       = "batch_started"
	EventBatchReset         = "batch_reset"
)

// Event is one entry in the bounded status event log.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// BatchStatus is a snapshot of the active scan batch.
type BatchStatus struct {
	ID        string    `json:"id"`
	Dir       string    `json:"dir"`
	Position  int       `json:"position"`
	Group     int       `json:"group"`
	Marker    int32     `json:"marker"`
	StartedAt time.Time `json:"started_at"`
}

// CellStatus is the full status surface consumed by the API layer.
type CellStatus struct {
	Connection  ConnectionStatus  `json:"connection"`
	Polling     bool              `json:"polling"`
	LastOutcome *InferenceOutcome `json:"last_outcome,omitempty"`
	Batch       *BatchStatus      `json:"batch,omitempty"`
	Events      []Event           `json:"events"`
}
