// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package dispatch

import (
	"math"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// pgaThresholdsGal are the upper PGA boundaries (in gal, cm/s^2) separating the ten
// intensity labels in seis.IntensityLabels, e.g. label "3" covers
// [pgaThresholdsGal[2], pgaThresholdsGal[3]).
var pgaThresholdsGal = []float64{0.8, 2.5, 8, 25, 80, 140, 250, 440, 800}

// intensityFromMixture converts a GaussianMixture over log-PGA into an intensity label
// by walking the threshold table from weakest to strongest and stopping at the first
// threshold whose exceedance probability falls below cutoff. Because exceedance
// probability is monotonically decreasing in the threshold, this always finds the
// highest label the mixture supports at the configured confidence level.
func intensityFromMixture(mix seis.GaussianMixture, cutoff float64) string {
	rank := 0
	for _, gal := range pgaThresholdsGal {
		if exceedanceProbability(mix, math.Log(gal)) < cutoff {
			break
		}
		rank++
	}
	if rank >= len(seis.IntensityLabels) {
		rank = len(seis.IntensityLabels) - 1
	}
	return seis.IntensityLabels[rank]
}

// exceedanceProbability returns P(logPGA > logThreshold) under the mixture.
func exceedanceProbability(mix seis.GaussianMixture, logThreshold float64) float64 {
	var p float64
	for k := range mix.Weights {
		std := math.Exp(mix.LogStd[k])
		if std <= 0 {
			std = 1e-6
		}
		z := (logThreshold - mix.Means[k]) / std
		p += mix.Weights[k] * (1 - normalCDF(z))
	}
	return p
}

func normalCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}
