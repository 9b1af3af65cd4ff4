// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package predictor

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// Stub is a deterministic Predictor: for a given InferenceInput it always returns the
// same GaussianMixture set, derived from the RMS amplitude of the masked-in waveform
// rows. It exists so the dispatcher, the replay tool, and the end-to-end tests have
// something to run against without a real mixture-density network.
//
// Latency and FailEvery are test knobs for exercising the dispatcher's timeout and
// error paths; production wiring leaves both zero.
type Stub struct {
	Seed int64

	Latency   time.Duration
	FailEvery int32 // if > 0, every FailEvery-th call returns an error instead

	calls int32
}

// NewStub returns a Stub with no injected latency or failures.
func NewStub(seed int64) *Stub {
	return &Stub{Seed: seed}
}

// ErrInjectedFailure is returned by Stub when FailEvery is configured and this call
// lands on the failure cadence.
var ErrInjectedFailure = errors.New("predictor: injected failure")

func (s *Stub) Predict(ctx context.Context, in seis.InferenceInput) (seis.InferenceOutput, error) {
	n := atomic.AddInt32(&s.calls, 1)

	if s.Latency > 0 {
		select {
		case <-time.After(s.Latency):
		case <-ctx.Done():
			return seis.InferenceOutput{}, ctx.Err()
		}
	}

	if s.FailEvery > 0 && n%s.FailEvery == 0 {
		return seis.InferenceOutput{}, ErrInjectedFailure
	}

	select {
	case <-ctx.Done():
		return seis.InferenceOutput{}, ctx.Err()
	default:
	}

	rms := rmsOfValid(in)
	mean := math.Log1p(rms) + float64(s.Seed)*1e-6

	out := seis.InferenceOutput{Mixtures: make([]seis.GaussianMixture, len(in.TargetRows))}
	for i := range in.TargetRows {
		out.Mixtures[i] = seis.GaussianMixture{
			Weights: []float64{0.6, 0.4},
			Means:   []float64{mean, mean - 0.3},
			LogStd:  []float64{math.Log(0.3), math.Log(0.5)},
		}
	}
	return out, nil
}

func rmsOfValid(in seis.InferenceInput) float64 {
	var sumSq float64
	var n int
	for row, valid := range in.Mask {
		if !valid {
			continue
		}
		for _, comp := range in.Waveform[row] {
			for _, v := range comp {
				if v.IsNaN() {
					continue
				}
				sumSq += float64(v) * float64(v)
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}
