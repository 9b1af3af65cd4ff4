// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package predictor defines the model-inference boundary and a deterministic stub
// implementation. The real mixture-density network is out of scope (see spec's
// Non-goals); Predictor is the seam a real model server would be wired in behind,
// exactly the way the teacher isolates its metric data backends behind a narrow
// interface (internal/metricdata.MetricDataRepository) rather than calling a concrete
// backend type throughout the codebase.
package predictor

import (
	"context"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// Predictor maps an InferenceInput to a per-target Gaussian mixture over log-PGA.
type Predictor interface {
	Predict(ctx context.Context, in seis.InferenceInput) (seis.InferenceOutput, error)
}
