// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/internal/config"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

type fakeWaves struct {
	blocks map[string]seis.ChannelBlock
}

func (f *fakeWaves) ReadWindow(stationID string, endTime float64) seis.ChannelBlock {
	if b, ok := f.blocks[stationID]; ok {
		return b
	}
	return seis.ChannelBlock{StationID: stationID}
}

type fakeStations struct {
	metas map[string]seis.StationMeta
}

func (f *fakeStations) Lookup(id string) (seis.StationMeta, bool) {
	m, ok := f.metas[id]
	return m, ok
}

type fakeTargets struct{ targets []seis.Target }

func (f *fakeTargets) Targets() []seis.Target { return f.targets }

func windowBlock(n int, value float64) seis.ChannelBlock {
	z := make([]float64, n)
	mask := make([]bool, n)
	for i := range z {
		z[i] = value
		mask[i] = true
	}
	return seis.ChannelBlock{Z: z, N: z, E: z, Mask: mask}
}

func TestAssembleProducesValidMaskedRows(t *testing.T) {
	cfg := config.Default()
	cfg.WindowSeconds = 1
	cfg.NStationsMax = 3
	windowSamples := int(float64(cfg.WindowSeconds) * seis.SupportedSampleRateHz)

	waves := &fakeWaves{blocks: map[string]seis.ChannelBlock{
		"A": windowBlock(windowSamples, 5.0),
		"B": windowBlock(windowSamples, 10.0),
	}}
	stations := &fakeStations{metas: map[string]seis.StationMeta{
		"A": {StationID: "A", Latitude: 1, Longitude: 2},
		"B": {StationID: "B", Latitude: 3, Longitude: 4},
	}}
	targets := &fakeTargets{targets: []seis.Target{{Name: "T1", Latitude: 0, Longitude: 0, Vs30: 300}}}

	as := New(cfg, waves, stations, targets)
	tr := seis.TickRequest{StationPickOrder: []string{"A", "B"}, WaveEndTime: 1.0}

	in, ok := as.Assemble(tr)
	require.True(t, ok)
	assert.True(t, in.Mask[0])
	assert.True(t, in.Mask[1])
	assert.False(t, in.Mask[2], "unused row should stay masked out")
	assert.Equal(t, "A", in.StationOrder[0])
	assert.Equal(t, "", in.StationOrder[2])
	assert.Len(t, in.TargetRows, 1)

	// demeaned: a constant-value window should normalize to all zeros
	for _, v := range in.Waveform[0][0] {
		assert.InDelta(t, 0.0, float64(v), 1e-9)
	}
}

func TestAssembleStationMetaRowHasSevenColumns(t *testing.T) {
	cfg := config.Default()
	cfg.WindowSeconds = 1
	cfg.NStationsMax = 1
	windowSamples := int(float64(cfg.WindowSeconds) * seis.SupportedSampleRateHz)

	z := make([]float64, windowSamples)
	mask := make([]bool, windowSamples)
	for i := range z {
		mask[i] = true
	}
	z[0], z[1] = 3.0, -6.0 // largest post-demean abs sample drives normalization_scale
	waves := &fakeWaves{blocks: map[string]seis.ChannelBlock{
		"A": {Z: z, N: make([]float64, windowSamples), E: make([]float64, windowSamples), Mask: mask},
	}}
	vs30 := 300.0
	stations := &fakeStations{metas: map[string]seis.StationMeta{
		"A": {StationID: "A", Latitude: 1, Longitude: 2, ElevationM: 10, Vs30: &vs30},
	}}
	targets := &fakeTargets{}

	as := New(cfg, waves, stations, targets)
	tr := seis.TickRequest{
		StationPickOrder:     []string{"A"},
		StationFirstPickTime: map[string]float64{"A": 95.0},
		WaveEndTime:          100.0,
	}

	in, ok := as.Assemble(tr)
	require.True(t, ok)
	require.Len(t, in.StationMetaRows[0], KMeta)
	row := in.StationMetaRows[0]
	assert.Equal(t, seis.Float(1), row[metaIdxLatitude])
	assert.Equal(t, seis.Float(2), row[metaIdxLongitude])
	assert.Equal(t, seis.Float(10), row[metaIdxElevationM])
	assert.Equal(t, seis.Float(300), row[metaIdxVs30])
	assert.InDelta(t, 5.0, float64(row[metaIdxSecondsSinceFirstPick]), 1e-9)
	assert.Equal(t, seis.Float(1), row[metaIdxParticipationFlag])
	assert.True(t, float64(row[metaIdxNormalizationScale]) > 0, "normalization_scale must be populated for a participating station")
}

func TestAssembleSkipsWhenNoStationHasData(t *testing.T) {
	cfg := config.Default()
	cfg.NStationsMax = 2
	waves := &fakeWaves{blocks: map[string]seis.ChannelBlock{}}
	stations := &fakeStations{metas: map[string]seis.StationMeta{}}
	targets := &fakeTargets{}

	as := New(cfg, waves, stations, targets)
	tr := seis.TickRequest{StationPickOrder: []string{"X"}, WaveEndTime: 1.0}

	_, ok := as.Assemble(tr)
	assert.False(t, ok)
}

func TestAssembleCapsStationOrderAtNStationsMax(t *testing.T) {
	cfg := config.Default()
	cfg.NStationsMax = 1
	windowSamples := int(float64(cfg.WindowSeconds) * seis.SupportedSampleRateHz)
	waves := &fakeWaves{blocks: map[string]seis.ChannelBlock{
		"A": windowBlock(windowSamples, 1.0),
		"B": windowBlock(windowSamples, 1.0),
	}}
	stations := &fakeStations{metas: map[string]seis.StationMeta{}}
	targets := &fakeTargets{}

	as := New(cfg, waves, stations, targets)
	tr := seis.TickRequest{StationPickOrder: []string{"A", "B"}, WaveEndTime: 1.0}

	in, ok := as.Assemble(tr)
	require.True(t, ok)
	assert.Len(t, in.StationOrder, 1)
	assert.Equal(t, "A", in.StationOrder[0])
}
