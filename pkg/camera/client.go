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

// Package camera holds the narrow contract to the machine-vision
// camera service and the capture coordinator that turns a detected
// trigger into a persisted frame on disk.
package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotStreaming = errors.New("camera is not streaming")
	errSaveRefused  = errors.New("camera service refused to save frame")
)

// Client is the camera collaborator contract. The SDK binding lives in
// the camera service; this core only ever asks it to persist the most
// recent frame.
type Client interface {
	IsStreaming(ctx context.Context) (bool, error)
	SaveLatestFrame(ctx context.Context, path string) error
}

const defaultRequestTimeout = 5 * time.Second

// HTTPClient talks JSON to the camera service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the camera service at baseURL.
// Zero timeout selects the default.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type cameraStatusResponse struct {
	IsOpen     bool `json:"is_open"`
	IsGrabbing bool `json:"is_grabbing"`
}

type saveFrameRequest struct {
	Path string `json:"path"`
}

type saveFrameResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *HTTPClient) IsStreaming(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/camera/status", http.NoBody)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("camera status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("camera status request returned %d", resp.StatusCode)
	}

	var status cameraStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("decode camera status: %w", err)
	}

	return status.IsGrabbing, nil
}

func (c *HTTPClient) SaveLatestFrame(ctx context.Context, path string) error {
	body, err := json.Marshal(saveFrameRequest{Path: path})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/camera/save", bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("camera save request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("camera save request returned %d", resp.StatusCode)
	}

	var result saveFrameResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode camera save response: %w", err)
	}

	if !result.Success {
		return fmt.Errorf("%w: %s", errSaveRefused, result.Message)
	}

	return nil
}
