// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command ttsam-replay drives the same forecaster pipeline as ttsam-rt from a
// recorded line-delimited JSON fixture instead of a live NATS feed, for offline
// demos and scenario testing. It never dials an outward bus unless the config
// file explicitly names one.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/catalog"
	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/pipeline"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/internal/transport"
)

const (
	exitOK           = 0
	exitGeneralError = 1
	exitConfigError  = 2
)

func main() {
	var flagConfigFile, flagFixture string
	var flagRate float64
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default options by those specified in `config.json`")
	flag.StringVar(&flagFixture, "fixture", "", "Line-delimited JSON fixture of {kind, packet|pick} records to replay")
	flag.Float64Var(&flagRate, "rate", 0, "Cap replay to this many records/sec (0 = as fast as possible)")
	flag.Parse()

	if flagFixture == "" {
		cclog.Error("replay: -fixture is required")
		os.Exit(exitConfigError)
	}

	cfg := config.Load(flagConfigFile)

	cat, err := catalog.Load(cfg.StationCatalogCSV, cfg.TargetCatalogCSV, cfg.Vs30GridCSV)
	if err != nil {
		cclog.Errorf("loading catalog: %s", err.Error())
		os.Exit(exitConfigError)
	}

	f, err := os.Open(flagFixture)
	if err != nil {
		cclog.Errorf("opening fixture: %s", err.Error())
		os.Exit(exitConfigError)
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	p, err := pipeline.New(ctx, cfg, cat, pipeline.Options{Predictor: predictor.NewStub(0)})
	if err != nil {
		cclog.Errorf("starting pipeline: %s", err.Error())
		os.Exit(exitGeneralError)
	}

	src := transport.NewTextStreamSource(f, flagRate)
	go func() {
		if err := src.RunCombined(ctx, p.IngestWaveform, p.IngestPick); err != nil && ctx.Err() == nil {
			cclog.Infof("replay: fixture exhausted: %v", err)
		}
		cancel()
	}()

	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		cclog.Errorf("pipeline exited with error: %s", err.Error())
		os.Exit(exitGeneralError)
	}
	os.Exit(exitOK)
}
