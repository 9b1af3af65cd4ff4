// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package seis

import (
	"encoding/json"
	"fmt"
)

// Channel identifies one of the three components of a station's ground-motion sensor.
type Channel string

const (
	ChannelZ Channel = "Z"
	ChannelN Channel = "N"
	ChannelE Channel = "E"
)

// Channels is the fixed, deterministic component order used everywhere a 3-row
// waveform block is assembled.
var Channels = [3]Channel{ChannelZ, ChannelN, ChannelE}

// SupportedSampleRateHz is the only sample rate the ring store and filter accept.
const SupportedSampleRateHz = 100.0

// WaveformPacket is one small burst of raw ground-motion samples as handed to the
// Wave Buffer by the Wave Ingestor.
type WaveformPacket struct {
	StationID    string    `json:"station_id"`
	Channel      Channel   `json:"channel_id"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	StartTime    float64   `json:"start_time"`
	EndTime      float64   `json:"end_time"`
	Samples      []float64 `json:"samples"`
	Gain         float64   `json:"gain"`
}

func (p *WaveformPacket) Validate() error {
	if p.SampleRateHz != SupportedSampleRateHz {
		return fmt.Errorf("unsupported sample rate %v", p.SampleRateHz)
	}
	want := int(roundHalfAwayFromZero((p.EndTime - p.StartTime) * p.SampleRateHz))
	if want != len(p.Samples) {
		return fmt.Errorf("bad packet: expected %d samples, got %d", want, len(p.Samples))
	}
	if p.Gain == 0 {
		return fmt.Errorf("bad packet: zero gain")
	}
	return nil
}

func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return -roundHalfAwayFromZero(-v)
	}
	f := float64(int64(v))
	if v-f >= 0.5 {
		return f + 1
	}
	return f
}

// ChannelBlock is a read_window() result: WINDOW_SAMPLES worth of Z/N/E samples ending
// at a requested absolute time, plus a validity mask (true == real sample, false ==
// gap). A gap sample holds NaN, not zero.
type ChannelBlock struct {
	StationID string
	EndTime   float64
	Z, N, E   []float64
	Mask      []bool
}

// Phase is the seismic phase a Pick reports the arrival of.
type Phase string

const (
	PhaseP Phase = "P"
	PhaseS Phase = "S"
)

// Pick is a single phase arrival reported by the upstream phase-picker.
type Pick struct {
	StationID       string  `json:"station_id"`
	Phase           Phase   `json:"phase"`
	PickTime        float64 `json:"pick_time"`
	Weight          float64 `json:"weight"`
	AmplitudeProxy  float64 `json:"amplitude_proxy"`
	NetworkCode     string  `json:"network_code,omitempty"`
	LocationCode    string  `json:"location_code,omitempty"`
}

// StationMeta is the static, catalog-resident description of a station.
type StationMeta struct {
	StationID    string   `json:"station_id"`
	Latitude     float64  `json:"latitude"`
	Longitude    float64  `json:"longitude"`
	ElevationM   float64  `json:"elevation_m"`
	Vs30         *float64 `json:"vs30,omitempty"`
	SiteClass    *string  `json:"site_class,omitempty"`
	NetworkCode  string   `json:"network_code,omitempty"`
	LocationCode string   `json:"location_code,omitempty"`
}

// Target is a named geographic point the model predicts intensity for.
type Target struct {
	Name      string  `json:"target_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Vs30      float64 `json:"vs30"`
}

// TickRequest is what the Pick Aggregator hands to the Tensor Assembler on every
// scheduled or terminal tick of an active event.
type TickRequest struct {
	EventID          int64
	TickIndex         int
	WaveEndTime       float64
	StationPickOrder  []string // station ids, ordered by first-pick time then id
	StationFirstPickTime map[string]float64 // per-station earliest Pick.PickTime in the event
	PicksCount        int
	Terminal          bool // last tick of the event (EVENT_DRAIN_SECONDS elapsed)
}

// InferenceInput is the fixed-shape tensor bundle fed to the Predictor.
type InferenceInput struct {
	NStationsMax int
	WindowSamples int
	KMeta        int
	KTarget      int

	// Waveform is [NStationsMax][3][WindowSamples]; unused rows and missing samples
	// hold NaN (seis.NaN), not zero.
	Waveform [][][]Float
	// StationMetaRows is [NStationsMax][KMeta].
	StationMetaRows [][]Float
	// TargetRows is [NTargets][KTarget], fixed configured target order.
	TargetRows [][]Float
	// Mask is [NStationsMax], true where the row holds a real station.
	Mask []bool
	// StationOrder names which station occupies each row (empty string == padding).
	StationOrder []string
}

// GaussianMixture is the MDN output for a single target: M components over log-PGA.
type GaussianMixture struct {
	Weights  []float64 // sums to 1 +/- 1e-4
	Means    []float64 // log-PGA means
	LogStd   []float64 // log-PGA log-stddevs
}

// InferenceOutput is the Predictor's response: one mixture per target, in target order.
type InferenceOutput struct {
	Mixtures []GaussianMixture
}

// IntensityLabels is the closed, ordered set of Taiwan-scale intensity strings, from
// weakest to strongest. Index order matters: it is the order alarm/threshold
// comparisons rank on.
var IntensityLabels = []string{"0", "1", "2", "3", "4", "5-", "5+", "6-", "6+", "7"}

// IntensityRank returns label's position in IntensityLabels, or -1 if unknown.
func IntensityRank(label string) int {
	for i, l := range IntensityLabels {
		if l == label {
			return i
		}
	}
	return -1
}

// TargetReport is one target's predicted intensity for a single tick.
type TargetReport struct {
	Target    string `json:"target"`
	Intensity string `json:"intensity"`
}

// Report is a single tick's result, the unit the Inference Dispatcher persists and
// publishes. PerTarget is not carried under its own "per_target" key on the wire: per
// spec.md §6 each target's label is flattened to its own top-level "<target_name>" key,
// handled by MarshalJSON/UnmarshalJSON below.
type Report struct {
	EventID            int64             `json:"event_id"`
	TickIndex          int               `json:"tick_index"`
	ReportTime         string            `json:"report_time"` // ISO-8601 UTC
	WaveEndTime        float64           `json:"wave_endt"`
	WaveLagSeconds     float64           `json:"wave_lag"`
	ComputeTimeSeconds float64           `json:"run_time"`
	PicksCount         int               `json:"picks"`
	PerTarget          map[string]string `json:"-"`
	AlarmTargets       []string          `json:"alarm"`
	AlarmCounties      []string          `json:"alarm_county"`
	Kind               string            `json:"kind,omitempty"` // "" | "predict_failed" | "predict_timeout"
}

// reportWire is Report's fixed-key shape, used as the MarshalJSON/UnmarshalJSON
// alias so per-target keys can be flattened onto (and recovered from) the same object
// without infinite recursion into Report's own methods.
type reportWire Report

// reportFixedKeys are every wire key that is not a flattened per-target label, used by
// UnmarshalJSON to tell the two apart.
var reportFixedKeys = map[string]bool{
	"event_id": true, "tick_index": true, "report_time": true,
	"wave_time": true, "wave_endt": true, "wave_lag": true, "run_time": true,
	"picks": true, "alarm": true, "alarm_county": true, "kind": true,
}

// MarshalJSON emits the fixed Report fields plus wave_time (a duplicate of wave_endt
// required by spec.md §6's outward-bus contract) and one top-level key per target
// instead of a nested per_target object.
func (r Report) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(reportWire(r))
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	waveTime, err := json.Marshal(r.WaveEndTime)
	if err != nil {
		return nil, err
	}
	m["wave_time"] = waveTime
	for target, label := range r.PerTarget {
		encoded, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		m[target] = encoded
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the fixed Report fields and recovers PerTarget from whatever keys
// are left over, the inverse of MarshalJSON's flattening.
func (r *Report) UnmarshalJSON(data []byte) error {
	var wire reportWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Report(wire)

	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	r.PerTarget = make(map[string]string, len(m))
	for key, raw := range m {
		if reportFixedKeys[key] {
			continue
		}
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			continue
		}
		r.PerTarget[key] = label
	}
	return nil
}
