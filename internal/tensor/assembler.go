// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tensor is the Tensor Assembler module: it turns a TickRequest plus the
// current wave buffer and station/target catalog into the fixed-shape InferenceInput
// the Predictor expects. Station ordering, capping, padding, and normalization are all
// deterministic so the same TickRequest always assembles the same tensor, the property
// spec.md's replay scenarios depend on.
package tensor

import (
	"math"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// KMeta is the number of per-station metadata features in each StationMetaRows row:
// latitude, longitude, elevation (m), vs30, normalization_scale, seconds_since_first_pick,
// participation_flag.
const KMeta = 7

// metaIdx* are the column indices within a StationMetaRows row, in the order spec.md
// §4.3 lists them.
const (
	metaIdxLatitude = iota
	metaIdxLongitude
	metaIdxElevationM
	metaIdxVs30
	metaIdxNormalizationScale
	metaIdxSecondsSinceFirstPick
	metaIdxParticipationFlag
)

// KTarget is the number of per-target features: latitude, longitude, Vs30.
const KTarget = 3

// WindowSource supplies a station's current filtered waveform window.
type WindowSource interface {
	ReadWindow(stationID string, endTime float64) seis.ChannelBlock
}

// StationSource supplies static station metadata.
type StationSource interface {
	Lookup(stationID string) (seis.StationMeta, bool)
}

// TargetSource supplies the fixed, ordered target list.
type TargetSource interface {
	Targets() []seis.Target
}

// Assembler builds InferenceInput values from TickRequests.
type Assembler struct {
	cfg      config.Config
	waves    WindowSource
	stations StationSource
	targets  TargetSource
}

func New(cfg config.Config, waves WindowSource, stations StationSource, targets TargetSource) *Assembler {
	return &Assembler{cfg: cfg, waves: waves, stations: stations, targets: targets}
}

// Assemble builds the InferenceInput for tr. ok is false when zero stations have any
// valid waveform data for this tick, in which case the caller should skip the tick
// rather than invoke the predictor on an all-padding tensor.
func (as *Assembler) Assemble(tr seis.TickRequest) (seis.InferenceInput, bool) {
	windowSamples := int(float64(as.cfg.WindowSeconds) * seis.SupportedSampleRateHz)
	nMax := as.cfg.NStationsMax

	order := capStationOrder(tr.StationPickOrder, nMax)

	in := seis.InferenceInput{
		NStationsMax:    nMax,
		WindowSamples:   windowSamples,
		KMeta:           KMeta,
		KTarget:         KTarget,
		Waveform:        make([][][]seis.Float, nMax),
		StationMetaRows: make([][]seis.Float, nMax),
		Mask:            make([]bool, nMax),
		StationOrder:    make([]string, nMax),
	}

	anyValid := false
	for row := 0; row < nMax; row++ {
		in.Waveform[row] = make([][]seis.Float, 3)
		in.StationMetaRows[row] = make([]seis.Float, KMeta)
		for c := 0; c < 3; c++ {
			in.Waveform[row][c] = make([]seis.Float, windowSamples)
			for i := range in.Waveform[row][c] {
				in.Waveform[row][c][i] = seis.NaN
			}
		}
		for i := range in.StationMetaRows[row] {
			in.StationMetaRows[row][i] = seis.NaN
		}

		if row >= len(order) {
			continue
		}
		stationID := order[row]
		in.StationOrder[row] = stationID

		block := as.waves.ReadWindow(stationID, tr.WaveEndTime)
		meta, haveMeta := as.stations.Lookup(stationID)

		validHere := fillWaveformRow(in.Waveform[row], block, windowSamples)
		if validHere {
			anyValid = true
			in.Mask[row] = true
		}

		if haveMeta {
			vs30 := 0.0
			if meta.Vs30 != nil {
				vs30 = *meta.Vs30
			}
			secondsSinceFirstPick := 0.0
			if fp, ok := tr.StationFirstPickTime[stationID]; ok {
				secondsSinceFirstPick = tr.WaveEndTime - fp
			}
			participation := 0.0
			if in.Mask[row] {
				participation = 1.0
			}
			metaRow := in.StationMetaRows[row]
			metaRow[metaIdxLatitude] = seis.Float(meta.Latitude)
			metaRow[metaIdxLongitude] = seis.Float(meta.Longitude)
			metaRow[metaIdxElevationM] = seis.Float(meta.ElevationM)
			metaRow[metaIdxVs30] = seis.Float(vs30)
			metaRow[metaIdxSecondsSinceFirstPick] = seis.Float(secondsSinceFirstPick)
			metaRow[metaIdxParticipationFlag] = seis.Float(participation)
			// metaIdxNormalizationScale is filled in by demeanAndScale below, once the
			// per-station scale is known.
		}
	}

	in.TargetRows = as.targetRows()

	if !anyValid {
		metrics.TicksSkippedInsufficientData.Inc()
		return in, false
	}
	demeanAndScale(in.Waveform, in.Mask, in.StationMetaRows)
	return in, true
}

// capStationOrder keeps at most nMax station ids, preserving first-pick order, the
// deterministic priority spec.md assigns for trimming an oversized event.
func capStationOrder(order []string, nMax int) []string {
	if len(order) <= nMax {
		return order
	}
	return order[:nMax]
}

// fillWaveformRow copies a station's Z/N/E window into the tensor row, right-aligned to
// windowSamples (older samples padded at the front if the ring returned fewer). It
// reports whether any sample in the row is valid.
func fillWaveformRow(row [][]seis.Float, block seis.ChannelBlock, windowSamples int) bool {
	comps := [3][]float64{block.Z, block.N, block.E}
	any := false
	for c := 0; c < 3; c++ {
		src := comps[c]
		if len(src) == 0 {
			continue
		}
		offset := windowSamples - len(src)
		if offset < 0 {
			src = src[-offset:]
			offset = 0
		}
		for i, v := range src {
			idx := offset + i
			if idx >= windowSamples {
				break
			}
			if block.Mask != nil && i < len(block.Mask) && !block.Mask[i] {
				continue
			}
			if math.IsNaN(v) {
				continue
			}
			row[c][idx] = seis.Float(v)
			any = true
		}
	}
	return any
}

func (as *Assembler) targetRows() [][]seis.Float {
	targets := as.targets.Targets()
	rows := make([][]seis.Float, len(targets))
	for i, t := range targets {
		rows[i] = []seis.Float{
			seis.Float(t.Latitude),
			seis.Float(t.Longitude),
			seis.Float(t.Vs30),
		}
	}
	return rows
}

// demeanAndScale demeans each channel of a station's window independently, then
// normalizes the whole row (Z, N and E together) by the single largest absolute sample
// across the three channels, storing that scale in the row's normalization_scale
// metadata column so the network can reconstruct the original magnitude. This is the
// normalization step a shaking-intensity MDN is trained against: raw physical-unit
// amplitude varies by orders of magnitude across stations, and a shared per-station
// scale keeps the relative amplitude between Z/N/E intact while every input row lands
// on a comparable footing.
func demeanAndScale(waveform [][][]seis.Float, mask []bool, metaRows [][]seis.Float) {
	for row := range waveform {
		if !mask[row] {
			continue
		}
		for c := range waveform[row] {
			data := waveform[row][c]
			sum, n := 0.0, 0
			for _, v := range data {
				if v.IsNaN() {
					continue
				}
				sum += float64(v)
				n++
			}
			if n == 0 {
				continue
			}
			mean := sum / float64(n)
			for i, v := range data {
				if v.IsNaN() {
					continue
				}
				data[i] = seis.Float(float64(v) - mean)
			}
		}

		scale := 0.0
		for c := range waveform[row] {
			for _, v := range waveform[row][c] {
				if v.IsNaN() {
					continue
				}
				if abs := math.Abs(float64(v)); abs > scale {
					scale = abs
				}
			}
		}
		if scale < 1e-9 {
			scale = 1
		}

		for c := range waveform[row] {
			data := waveform[row][c]
			for i, v := range data {
				if v.IsNaN() {
					continue
				}
				data[i] = seis.Float(float64(v) / scale)
			}
		}

		if row < len(metaRows) && metaRows[row] != nil {
			metaRows[row][metaIdxNormalizationScale] = seis.Float(scale)
		}
	}
}
