// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func TestIntensityFromMixtureMonotonic(t *testing.T) {
	weak := seis.GaussianMixture{Weights: []float64{1}, Means: []float64{-5}, LogStd: []float64{-1}}
	strong := seis.GaussianMixture{Weights: []float64{1}, Means: []float64{10}, LogStd: []float64{-1}}

	assert.Equal(t, "0", intensityFromMixture(weak, 0.5))
	assert.Equal(t, "7", intensityFromMixture(strong, 0.5))
}

func TestDispatchSuccessFillsPerTarget(t *testing.T) {
	cfg := config.Default()
	cfg.AlarmMinIntensity = "4"
	cfg.IntensityCutoff = 0.5
	pred := predictor.NewStub(1)
	d := New(cfg, pred)

	in := seis.InferenceInput{
		Mask:       []bool{true},
		Waveform:   [][][]seis.Float{{{100, 100, 100}, {100, 100, 100}, {100, 100, 100}}},
		TargetRows: [][]seis.Float{{0, 0, 0}},
	}
	targets := []TargetInfo{{Name: "Taipei", County: "Taipei City"}}

	report := d.Dispatch(context.Background(), seis.TickRequest{EventID: 1, TickIndex: 0, WaveEndTime: 100}, in, targets)
	assert.Empty(t, report.Kind)
	require.Contains(t, report.PerTarget, "Taipei")
}

func TestFillIntensitiesOrdersAlarmTargetsByDescendingIntensityThenName(t *testing.T) {
	cfg := config.Default()
	cfg.AlarmMinIntensity = "4"
	d := New(cfg, predictor.NewStub(0))

	strong := seis.GaussianMixture{Weights: []float64{1}, Means: []float64{10}, LogStd: []float64{-1}}
	mid := seis.GaussianMixture{Weights: []float64{1}, Means: []float64{3.5}, LogStd: []float64{-2.302585}}
	require.Equal(t, "7", intensityFromMixture(strong, 0.5))
	require.Equal(t, "4", intensityFromMixture(mid, 0.5))

	targets := []TargetInfo{
		{Name: "Zeta", County: "Hualien"},
		{Name: "Beta", County: "Taipei City"},
		{Name: "Alpha", County: "Taipei City"},
	}
	out := seis.InferenceOutput{Mixtures: []seis.GaussianMixture{strong, mid, mid}}

	report := &seis.Report{PerTarget: map[string]string{}}
	d.fillIntensities(report, out, targets)

	assert.Equal(t, []string{"Zeta", "Alpha", "Beta"}, report.AlarmTargets)
	assert.Equal(t, []string{"Hualien", "Taipei City"}, report.AlarmCounties)
}

func TestDispatchTimeoutProducesPredictTimeoutReport(t *testing.T) {
	cfg := config.Default()
	cfg.PredictTimeoutSeconds = 0.01
	pred := &predictor.Stub{Latency: 200 * time.Millisecond}
	d := New(cfg, pred)

	report := d.Dispatch(context.Background(), seis.TickRequest{EventID: 1, TickIndex: 0}, seis.InferenceInput{}, nil)
	assert.Equal(t, "predict_timeout", report.Kind)
	assert.Empty(t, report.AlarmTargets)
}

func TestDispatchFailureProducesPredictFailedReport(t *testing.T) {
	cfg := config.Default()
	pred := &predictor.Stub{FailEvery: 1}
	d := New(cfg, pred)

	report := d.Dispatch(context.Background(), seis.TickRequest{EventID: 1, TickIndex: 0}, seis.InferenceInput{}, nil)
	assert.Equal(t, "predict_failed", report.Kind)
}
