// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline wires the forecaster's modules into one running process: ingest
// transport feeds the wave buffer and pick aggregator, the aggregator's ticks drive the
// tensor assembler and dispatcher, and reports fan out to the report log, the event
// index, the outward bus, and the view-channel hub. The context+WaitGroup lifecycle and
// ordered shutdown sequence mirrors the teacher's cmd/cc-backend/main.go server
// lifecycle (signal handling, a cancelable root context, a clean shutdown sequence
// instead of os.Exit from inside a goroutine).
package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/bus"
	"github.com/ttsam-rt/ttsam-rt/internal/catalog"
	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/dispatch"
	"github.com/ttsam-rt/ttsam-rt/internal/eventindex"
	"github.com/ttsam-rt/ttsam-rt/internal/housekeeping"
	"github.com/ttsam-rt/ttsam-rt/internal/httpapi"
	"github.com/ttsam-rt/ttsam-rt/internal/pickagg"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/internal/reportlog"
	"github.com/ttsam-rt/ttsam-rt/internal/tensor"
	"github.com/ttsam-rt/ttsam-rt/internal/transport"
	"github.com/ttsam-rt/ttsam-rt/internal/wavebuffer"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// Pipeline owns every long-lived component of one forecaster process.
type Pipeline struct {
	cfg config.Config
	cat *catalog.Catalog

	waves *wavebuffer.WaveBuffer
	agg   *pickagg.Aggregator
	asm   *tensor.Assembler
	disp  *dispatch.Dispatcher

	reports *reportlog.Writer
	index   *eventindex.Index
	housek  *housekeeping.Manager

	busClient *bus.Client
	hub       *bus.Hub
	http      *httpapi.Server

	waveformSrc transport.WaveformSource
	pickSrc     transport.PickSource

	wg sync.WaitGroup
}

// Options bundles the dependencies New needs beyond cfg/catalog: an ingest transport
// pair and a Predictor. Tests substitute fakes/stubs for both.
type Options struct {
	Predictor   predictor.Predictor
	WaveformSrc transport.WaveformSource
	PickSrc     transport.PickSource
}

// New wires every module together without starting any goroutines.
func New(ctx context.Context, cfg config.Config, cat *catalog.Catalog, opts Options) (*Pipeline, error) {
	waves := wavebuffer.New(cfg.WindowSeconds, seis.SupportedSampleRateHz, cfg.BandpassOrder, cfg.BandpassLowHz, cfg.BandpassHighHz)
	agg := pickagg.New(cfg, cat)
	asm := tensor.New(cfg, waves, cat, cat)
	disp := dispatch.New(cfg, opts.Predictor)

	reports := reportlog.New(cfg.ReportLogDir, cfg.PickLogDir)

	index, err := eventindex.Open(cfg.EventIndexDB)
	if err != nil {
		return nil, err
	}

	housek, err := housekeeping.New()
	if err != nil {
		return nil, err
	}
	housek.RegisterPickLogRetention(cfg.PickLogDir, 30*24*time.Hour)
	housek.RegisterEventIndexVacuum(index, 24*time.Hour)

	busClient, err := transport.DialBusWithBackoff(ctx, cfg.NatsAddress)
	if err != nil {
		return nil, err
	}

	hub := bus.NewHub()
	httpSrv := httpapi.New(cfg.DebugListenAddr, waves, hub)

	return &Pipeline{
		cfg:         cfg,
		cat:         cat,
		waves:       waves,
		agg:         agg,
		asm:         asm,
		disp:        disp,
		reports:     reports,
		index:       index,
		housek:      housek,
		busClient:   busClient,
		hub:         hub,
		http:        httpSrv,
		waveformSrc: opts.WaveformSrc,
		pickSrc:     opts.PickSrc,
	}, nil
}

// Run starts every goroutine and blocks until ctx is canceled, then shuts down in
// dependency order: stop ingest, stop the aggregator's tick scheduler, drain whatever
// ticks are already queued, then close storage/bus handles.
func (p *Pipeline) Run(ctx context.Context) error {
	p.http.Start()
	p.housek.Start()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.agg.Run(ctx)
	}()

	if p.waveformSrc != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.waveformSrc.Run(ctx, p.waves.Insert); err != nil && ctx.Err() == nil {
				cclog.Warnf("pipeline: waveform source stopped: %v", err)
			}
		}()
	}

	if p.pickSrc != nil {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			if err := p.pickSrc.Run(ctx, p.onPick); err != nil && ctx.Err() == nil {
				cclog.Warnf("pipeline: pick source stopped: %v", err)
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.consumeTicks(ctx)
	}()

	<-ctx.Done()
	p.wg.Wait()
	return p.shutdown()
}

func (p *Pipeline) onPick(pk seis.Pick) {
	if err := p.reports.WritePick(pk); err != nil {
		cclog.Warnf("pipeline: writing pick log: %v", err)
	}
	p.agg.AddPick(pk)
}

// IngestWaveform feeds one packet directly into the wave buffer, bypassing the
// WaveformSource goroutine. The replay CLI uses this to drive the pipeline from a
// single fixture scan instead of standing up two competing ingest goroutines.
func (p *Pipeline) IngestWaveform(pkt seis.WaveformPacket) {
	p.waves.Insert(pkt)
}

// IngestPick feeds one pick directly into the pick log and aggregator, the PickSource
// counterpart to IngestWaveform.
func (p *Pipeline) IngestPick(pk seis.Pick) {
	p.onPick(pk)
}

func (p *Pipeline) consumeTicks(ctx context.Context) {
	for {
		tr, ok := p.agg.Ticks().Next(ctx)
		if !ok {
			return
		}
		p.handleTick(ctx, tr)
	}
}

func (p *Pipeline) handleTick(ctx context.Context, tr seis.TickRequest) {
	in, ok := p.asm.Assemble(tr)
	if !ok {
		return
	}

	targets := p.targetInfos()
	report := p.disp.Dispatch(ctx, tr, in, targets)

	if err := p.reports.WriteReport(report); err != nil {
		cclog.Warnf("pipeline: writing report: %v", err)
	}
	if err := p.index.RecordReport(report, tr.Terminal); err != nil {
		cclog.Warnf("pipeline: recording event index: %v", err)
	}

	if payload, err := json.Marshal(report); err == nil {
		if err := p.busClient.Publish(p.cfg.NatsReportSubject, payload); err != nil {
			cclog.Warnf("pipeline: publishing report: %v", err)
		}
		p.hub.Broadcast(payload)
	}
}

func (p *Pipeline) targetInfos() []dispatch.TargetInfo {
	targets := p.cat.Targets()
	out := make([]dispatch.TargetInfo, len(targets))
	for i, t := range targets {
		county, _ := p.cat.CountyFor(t.Name)
		out[i] = dispatch.TargetInfo{Name: t.Name, County: county}
	}
	return out
}

func (p *Pipeline) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.http.Shutdown(shutdownCtx); err != nil {
		cclog.Warnf("pipeline: http shutdown: %v", err)
	}
	if err := p.housek.Shutdown(); err != nil {
		cclog.Warnf("pipeline: housekeeping shutdown: %v", err)
	}
	p.busClient.Close()
	if err := p.reports.Close(); err != nil {
		cclog.Warnf("pipeline: closing report log: %v", err)
	}
	if err := p.index.Close(); err != nil {
		cclog.Warnf("pipeline: closing event index: %v", err)
	}
	return nil
}
