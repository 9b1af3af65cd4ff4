// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dispatch is the Inference Dispatch & Reporter module: it serializes calls
// into the Predictor under a soft timeout, turns the resulting Gaussian mixtures into
// intensity labels and an alarm list, and assembles the per-tick Report. A predictor
// error or timeout still produces a Report (kind "predict_failed"/"predict_timeout")
// so the report log has an unbroken per-tick record, the same posture the teacher's
// metricdata repositories take when a backend query fails: log and return a partial
// result, never drop the request on the floor silently.
package dispatch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/predictor"
	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// TargetInfo names a target and, if known, the county it rolls up to for the report's
// alarm_county field.
type TargetInfo struct {
	Name   string
	County string
}

// Dispatcher owns the single Predictor instance and serializes access to it: most
// mixture-density network runtimes are not safe for concurrent inference, and the
// pipeline calls Dispatch from a single tick-consuming goroutine regardless.
type Dispatcher struct {
	cfg   config.Config
	pred  predictor.Predictor
	clock func() float64

	mu sync.Mutex
}

func New(cfg config.Config, pred predictor.Predictor) *Dispatcher {
	return &Dispatcher{
		cfg:   cfg,
		pred:  pred,
		clock: func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

// Dispatch runs in into the predictor under PredictTimeoutSeconds and returns the
// resulting Report. targets must be in the same order as in.TargetRows.
func (d *Dispatcher) Dispatch(ctx context.Context, tr seis.TickRequest, in seis.InferenceInput, targets []TargetInfo) seis.Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	timeout := time.Duration(d.cfg.PredictTimeoutSeconds * float64(time.Second))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := d.pred.Predict(ctx, in)
	elapsed := time.Since(start)
	metrics.PredictLatencySeconds.Observe(elapsed.Seconds())

	now := d.clock()
	report := seis.Report{
		EventID:            tr.EventID,
		TickIndex:          tr.TickIndex,
		ReportTime:         time.Now().UTC().Format(time.RFC3339Nano),
		WaveEndTime:        tr.WaveEndTime,
		WaveLagSeconds:     now - tr.WaveEndTime,
		ComputeTimeSeconds: elapsed.Seconds(),
		PicksCount:         tr.PicksCount,
		PerTarget:          map[string]string{},
	}

	if err != nil {
		kind := "predict_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			kind = "predict_timeout"
		}
		metrics.PredictFailures.WithLabelValues(kind).Inc()
		report.Kind = kind
		cclog.Warnf("dispatch: event %d tick %d: %s: %s", tr.EventID, tr.TickIndex, kind, err.Error())
		return report
	}

	d.fillIntensities(&report, out, targets)
	return report
}

func (d *Dispatcher) fillIntensities(report *seis.Report, out seis.InferenceOutput, targets []TargetInfo) {
	alarmRank := seis.IntensityRank(d.cfg.AlarmMinIntensity)

	type alarmHit struct {
		target TargetInfo
		rank   int
	}
	var hits []alarmHit

	for i, mix := range out.Mixtures {
		if i >= len(targets) {
			break
		}
		label := intensityFromMixture(mix, d.cfg.IntensityCutoff)
		report.PerTarget[targets[i].Name] = label

		if rank := seis.IntensityRank(label); alarmRank >= 0 && rank >= alarmRank {
			hits = append(hits, alarmHit{target: targets[i], rank: rank})
		}
	}

	// spec.md §4.4 step 4: alarm_targets ordered by descending intensity, tie-broken by
	// target_name.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		return hits[i].target.Name < hits[j].target.Name
	})

	countySeen := make(map[string]bool)
	for _, h := range hits {
		report.AlarmTargets = append(report.AlarmTargets, h.target.Name)
		if h.target.County != "" && !countySeen[h.target.County] {
			countySeen[h.target.County] = true
			report.AlarmCounties = append(report.AlarmCounties, h.target.County)
		}
	}
}
