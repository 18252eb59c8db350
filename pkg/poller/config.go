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

package poller

import (
	"fmt"
	"time"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
)

var (
	errPLCHostRequired      = fmt.Errorf("plc host is required")
	errGateDeviceRequired   = fmt.Errorf("gate device is required")
	errTriggerRequired      = fmt.Errorf("at least one trigger device is required")
	errMarkerDeviceRequired = fmt.Errorf("marker device is required")
	errFeedbackRequired     = fmt.Errorf("feedback device is required")
	errCaptureRootRequired  = fmt.Errorf("capture root is required")
	errCameraURLRequired    = fmt.Errorf("camera url is required")
	errInferenceURLRequired = fmt.Errorf("inference url is required")
)

const (
	defaultPollInterval  = 75 * time.Millisecond
	defaultErrorBackoff  = 1 * time.Second
	defaultFeedbackPulse = 100 * time.Millisecond
	defaultPLCPort       = 5007
)

// Config represents the scan cell configuration.
type Config struct {
	PLCHost        string          `json:"plc_host"`
	PLCPort        int             `json:"plc_port,omitempty"`
	PollInterval   models.Duration `json:"poll_interval,omitempty"`
	ErrorBackoff   models.Duration `json:"error_backoff,omitempty"`
	GateDevice     string          `json:"gate_device"`
	TriggerDevices []string        `json:"trigger_devices"`
	MarkerDevice   string          `json:"marker_device"`
	FeedbackDevice string          `json:"feedback_device"`
	FeedbackPulse  models.Duration `json:"feedback_pulse,omitempty"`
	CaptureRoot    string          `json:"capture_root"`
	SaveOverlay    bool            `json:"save_overlay,omitempty"`
	CameraURL      string          `json:"camera_url"`
	InferenceURL   string          `json:"inference_url"`
	DBPath         string          `json:"db_path,omitempty"`
	Logging        *logger.Config  `json:"logging,omitempty"`
}

// Validate implements the config.Validator interface.
func (c *Config) Validate() error {
	if c.PLCHost == "" {
		return errPLCHostRequired
	}

	if c.GateDevice == "" {
		return errGateDeviceRequired
	}

	if len(c.TriggerDevices) == 0 {
		return errTriggerRequired
	}

	if c.MarkerDevice == "" {
		return errMarkerDeviceRequired
	}

	if c.FeedbackDevice == "" {
		return errFeedbackRequired
	}

	if c.CaptureRoot == "" {
		return errCaptureRootRequired
	}

	if c.CameraURL == "" {
		return errCameraURLRequired
	}

	if c.InferenceURL == "" {
		return errInferenceURLRequired
	}

	if c.PLCPort == 0 {
		c.PLCPort = defaultPLCPort
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.ErrorBackoff) == 0 {
		c.ErrorBackoff = models.Duration(defaultErrorBackoff)
	}

	if time.Duration(c.FeedbackPulse) == 0 {
		c.FeedbackPulse = models.Duration(defaultFeedbackPulse)
	}

	return nil
}
