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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/carverauto/scancell/pkg/camera"
	"github.com/carverauto/scancell/pkg/config"
	"github.com/carverauto/scancell/pkg/db"
	"github.com/carverauto/scancell/pkg/inference"
	"github.com/carverauto/scancell/pkg/lifecycle"
	"github.com/carverauto/scancell/pkg/logger"
	"github.com/carverauto/scancell/pkg/plc"
	"github.com/carverauto/scancell/pkg/poller"
	"github.com/carverauto/scancell/pkg/scan"
	"github.com/carverauto/scancell/pkg/status"
)

var (
	errFailedToLoadConfig = fmt.Errorf("failed to load config")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/scancell/scancell.json", "Path to scan cell config file")
	flag.Parse()

	ctx := context.Background()

	// Step 1: Load configuration
	cfgLoader := config.NewConfig(nil)

	var cfg poller.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	// Step 2: Create logger from loaded config
	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = &logger.Config{
			Level:  "info",
			Output: "stdout",
		}
	}

	cellLogger, err := lifecycle.CreateComponentLogger("scancell", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Optional history store
	sinkOpts := []status.Option{}

	if cfg.DBPath != "" {
		store, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer func() { _ = store.Close() }()

		sinkOpts = append(sinkOpts, status.WithHistory(store))
	}

	// PLC connection manager; the session itself is opened lazily on
	// the first wire call.
	manager := plc.NewManager(nil, 0, cellLogger)
	manager.Configure(cfg.PLCHost, cfg.PLCPort)

	tracker := scan.NewTracker(nil)

	sinkOpts = append(sinkOpts,
		status.WithConnectionStatus(manager.Status),
		status.WithBatchStatus(tracker.Status),
	)
	sink := status.NewSink(cellLogger, sinkOpts...)

	cameraClient := camera.NewHTTPClient(cfg.CameraURL, 0)
	coordinator := camera.NewCoordinator(cameraClient, sink, cellLogger)

	predictor := inference.NewHTTPClient(cfg.InferenceURL, 0)
	dispatcher := inference.NewDispatcher(predictor, sink, cfg.SaveOverlay, cellLogger)

	p, err := poller.New(&cfg, poller.Deps{
		PLC:       manager,
		Camera:    coordinator,
		Inference: dispatcher,
		Tracker:   tracker,
		Sink:      sink,
	}, nil, cellLogger)
	if err != nil {
		return err
	}

	defer manager.Disconnect()

	return lifecycle.Run(ctx, p, cellLogger)
}
