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

package camera

import (
	"context"
	"os"
	"path/filepath"

	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/models"
)

// EventRecorder receives the coordinator's failure events. The status
// sink implements it.
type EventRecorder interface {
	AddEvent(kind, message string)
}

// Coordinator turns a trigger into a persisted image file.
type Coordinator struct {
	client Client
	events EventRecorder
	logger logger.Logger
}

func NewCoordinator(client Client, events EventRecorder, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Coordinator{
		client: client,
		events: events,
		logger: log,
	}
}

// Capture persists the camera's most recent frame to path. It reports
// failure instead of returning an error: a missed frame aborts the
// current cycle only, never the loop, and the reason is recorded for
// the status surface.
func (c *Coordinator) Capture(ctx context.Context, path string) bool {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.fail("create capture directory: " + err.Error())
		return false
	}

	streaming, err := c.client.IsStreaming(ctx)
	if err != nil {
		c.fail("camera status check failed: " + err.Error())
		return false
	}

	if !streaming {
		c.fail(ErrNotStreaming.Error())
		return false
	}

	if err := c.client.SaveLatestFrame(ctx, path); err != nil {
		c.fail("save frame failed: " + err.Error())
		return false
	}

	c.logger.Debug().Str("path", path).Msg("Frame captured")

	return true
}

func (c *Coordinator) fail(reason string) {
	c.logger.Warn().Str("reason", reason).Msg("Capture unavailable")

	if c.events != nil {
		c.events.AddEvent(models.EventCaptureUnavailable, reason)
	}
}
