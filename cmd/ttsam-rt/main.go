// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ttsam-rt is the forecaster process: it subscribes to waveform and pick
// subjects on NATS, runs the wave buffer / pick aggregator / tensor assembler /
// dispatcher pipeline, and publishes reports back out. Its startup sequence mirrors
// the teacher's cmd/cc-backend/main.go: flags, optional gops agent, optional .env,
// config load, then a cancelable root context driving a single graceful-shutdown path.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"
	"github.com/joho/godotenv"

	"github.com/ttsam-rt/ttsam-rt/internal/catalog"
	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/pipeline"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/internal/transport"
	"github.com/ttsam-rt/ttsam-rt/pkg/runtimeEnv"
)

// Exit codes let a process supervisor tell transport trouble apart from other fatal
// conditions without parsing logs: 1 for a catalog load failure or a pipeline run
// error, 3 when the ingest bus cannot be dialed or the pipeline cannot be built.
const (
	exitOK             = 0
	exitGeneralError   = 1
	exitCatalogError   = 1
	exitTransportError = 3
)

func main() {
	var flagConfigFile string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default options by those specified in `config.json`")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Fatalf("parsing '.env' file failed: %s", err.Error())
	}

	cfg := config.Load(flagConfigFile)

	cat, err := catalog.Load(cfg.StationCatalogCSV, cfg.TargetCatalogCSV, cfg.Vs30GridCSV)
	if err != nil {
		cclog.Errorf("loading catalog: %s", err.Error())
		os.Exit(exitCatalogError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingest, err := transport.DialBusWithBackoff(ctx, cfg.NatsAddress)
	if err != nil {
		cclog.Errorf("dialing ingest bus: %s", err.Error())
		os.Exit(exitTransportError)
	}
	defer ingest.Close()

	opts := pipeline.Options{
		Predictor: predictor.NewStub(0),
		WaveformSrc: &transport.NatsWaveformSource{
			Client:  ingest,
			Subject: cfg.NatsWaveformSubject,
		},
		PickSrc: &transport.NatsPickSource{
			Client:  ingest,
			Subject: cfg.NatsPickSubject,
		},
	}

	p, err := pipeline.New(ctx, cfg, cat, opts)
	if err != nil {
		cclog.Errorf("starting pipeline: %s", err.Error())
		os.Exit(exitTransportError)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		runtimeEnv.SystemdNotifiy(false, "shutting down")
		cancel()
	}()

	runtimeEnv.SystemdNotifiy(true, "running")
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		cclog.Errorf("pipeline exited with error: %s", err.Error())
		os.Exit(exitGeneralError)
	}
	os.Exit(exitOK)
}
