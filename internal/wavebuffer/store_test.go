// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wavebuffer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func packet(stationID string, ch seis.Channel, start float64, n int, rate float64) seis.WaveformPacket {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 1.0
	}
	return seis.WaveformPacket{
		StationID:    stationID,
		Channel:      ch,
		SampleRateHz: rate,
		StartTime:    start,
		EndTime:      start + float64(n)/rate,
		Samples:      samples,
		Gain:         1.0,
	}
}

func TestChannelRingBasicInsertRead(t *testing.T) {
	r := newChannelRing(2, 100, 4, 0.075, 10.0, nil)
	p := packet("STA1", seis.ChannelZ, 0.0, 100, 100)
	r.insert(&p, "STA1", seis.ChannelZ)

	vals, mask := r.readWindow(0.99)
	require.Len(t, vals, 200)
	require.Len(t, mask, 200)

	validCount := 0
	for _, v := range mask {
		if v {
			validCount++
		}
	}
	assert.Equal(t, 100, validCount, "only the first second of a 2s window should be valid")

	for i, v := range mask {
		if !v {
			assert.True(t, math.IsNaN(vals[i]))
		}
	}
}

func TestChannelRingGapTriggersReset(t *testing.T) {
	r := newChannelRing(2, 100, 4, 0.075, 10.0, nil)
	p1 := packet("STA1", seis.ChannelZ, 0.0, 100, 100)
	r.insert(&p1, "STA1", seis.ChannelZ)
	require.Equal(t, 100, r.validCount())

	// a packet far beyond one full window past the anchor forces a reset
	p2 := packet("STA1", seis.ChannelZ, 1000.0, 100, 100)
	r.insert(&p2, "STA1", seis.ChannelZ)

	assert.LessOrEqual(t, r.validCount(), 100)
	vals, mask := r.readWindow(1000.99)
	found := false
	for i, v := range mask {
		if v {
			found = true
			assert.False(t, math.IsNaN(vals[i]))
		}
	}
	assert.True(t, found, "post-reset samples should be readable")
}

func TestChannelRingSlideInvalidatesOldest(t *testing.T) {
	r := newChannelRing(1, 100, 4, 0.075, 10.0, nil) // 1s window = 100 samples
	p1 := packet("STA1", seis.ChannelZ, 0.0, 100, 100)
	r.insert(&p1, "STA1", seis.ChannelZ)
	require.Equal(t, 100, r.validCount())

	// a packet starting half a window later whose tail runs half a window past the
	// current window slides the anchor forward 50 samples, invalidating the 50 oldest
	p2 := packet("STA1", seis.ChannelZ, 0.5, 100, 100)
	r.insert(&p2, "STA1", seis.ChannelZ)

	assert.Equal(t, int64(50), r.anchorAbsIndex)
	assert.LessOrEqual(t, r.validCount(), 100)
}

func TestWaveBufferReadWindowUnknownStation(t *testing.T) {
	wb := New(2, 100, 4, 0.075, 10.0)
	block := wb.ReadWindow("GHOST", 1.0)
	assert.Equal(t, "GHOST", block.StationID)
	for _, v := range block.Mask {
		assert.False(t, v)
	}
}

func TestWaveBufferInsertRejectsBadPacket(t *testing.T) {
	wb := New(2, 100, 4, 0.075, 10.0)
	bad := seis.WaveformPacket{
		StationID:    "STA1",
		Channel:      seis.ChannelZ,
		SampleRateHz: 50, // unsupported
		StartTime:    0,
		EndTime:      1,
		Samples:      make([]float64, 50),
		Gain:         1,
	}
	wb.Insert(bad)
	block := wb.ReadWindow("STA1", 1.0)
	for _, v := range block.Mask {
		assert.False(t, v)
	}
}

func TestWaveBufferSnapshotReflectsCounts(t *testing.T) {
	wb := New(2, 100, 4, 0.075, 10.0)
	for _, ch := range seis.Channels {
		p := packet("STA1", ch, 0.0, 100, 100)
		wb.Insert(p)
	}
	snap := wb.Snapshot()
	require.Contains(t, snap.Stations, "STA1")
	for _, ch := range seis.Channels {
		assert.Equal(t, 100, snap.Stations["STA1"][string(ch)])
	}
}
