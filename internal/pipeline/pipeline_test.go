// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/internal/catalog"
	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// noopSource never delivers anything; used where a pipeline test doesn't exercise
// ingest at all.
type noopWaveformSource struct{}

func (noopWaveformSource) Run(ctx context.Context, onPacket func(seis.WaveformPacket)) error {
	<-ctx.Done()
	return ctx.Err()
}

type noopPickSource struct{}

func (noopPickSource) Run(ctx context.Context, onPick func(seis.Pick)) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPipelineStartsAndShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ReportLogDir = filepath.Join(dir, "report")
	cfg.PickLogDir = filepath.Join(dir, "pick")
	cfg.EventIndexDB = filepath.Join(dir, "events.db")
	cfg.DebugListenAddr = "127.0.0.1:0"
	cfg.NatsAddress = ""

	cat := catalog.New()
	cat.AddTarget(seis.Target{Name: "Taipei", Latitude: 25.03, Longitude: 121.5, Vs30: 250})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	p, err := New(ctx, cfg, cat, Options{
		Predictor:   predictor.NewStub(1),
		WaveformSrc: noopWaveformSource{},
		PickSrc:     noopPickSource{},
	})
	require.NoError(t, err)

	err = p.Run(ctx)
	assert.NoError(t, err)
}
