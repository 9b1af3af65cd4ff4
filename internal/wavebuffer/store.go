// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wavebuffer is the Wave Buffer / Ring Store module: it turns a stream of
// small WaveformPacket bursts into a bandpass-filtered, fixed-length rolling window per
// (station, channel), addressable by absolute end time. It is grounded on the teacher's
// pkg/metricstore package (internal/wavebuffer/ring.go mirrors buffer.go's fixed-size
// ring with an anchor and invalidation-on-rotation; store.go mirrors level.go's
// double-checked-locking lazy map of children, here keyed by station instead of by
// metric-config level).
package wavebuffer

import (
	"sync"

	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// WaveBuffer holds one channelRing per (station, channel), created lazily on first
// insert. Grounded on pkg/metricstore/level.go's lvl.children: a map guarded by an
// RWMutex with double-checked locking on the write path, since station population is
// write-once-read-often after the first few seconds of ingest.
type WaveBuffer struct {
	mu       sync.RWMutex
	stations map[string]*stationRings

	windowSeconds int
	rateHz        float64
	order         int
	lowHz, highHz float64

	pool *samplePool
}

type stationRings struct {
	mu    sync.RWMutex
	rings map[seis.Channel]*channelRing
}

// New constructs an empty WaveBuffer for the given window length, sample rate, and
// bandpass corner parameters.
func New(windowSeconds int, rateHz float64, bandpassOrder int, lowHz, highHz float64) *WaveBuffer {
	return &WaveBuffer{
		stations:      make(map[string]*stationRings),
		windowSeconds: windowSeconds,
		rateHz:        rateHz,
		order:         bandpassOrder,
		lowHz:         lowHz,
		highHz:        highHz,
		pool:          newSamplePool(),
	}
}

func (w *WaveBuffer) ringFor(stationID string, channel seis.Channel) *channelRing {
	w.mu.RLock()
	sr, ok := w.stations[stationID]
	w.mu.RUnlock()
	if !ok {
		w.mu.Lock()
		sr, ok = w.stations[stationID]
		if !ok {
			sr = &stationRings{rings: make(map[seis.Channel]*channelRing)}
			w.stations[stationID] = sr
		}
		w.mu.Unlock()
	}

	sr.mu.RLock()
	r, ok := sr.rings[channel]
	sr.mu.RUnlock()
	if ok {
		return r
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	if r, ok = sr.rings[channel]; ok {
		return r
	}
	r = newChannelRing(w.windowSeconds, w.rateHz, w.order, w.lowHz, w.highHz, w.pool)
	sr.rings[channel] = r
	return r
}

// Insert validates and bandpass-filters a waveform packet into the corresponding
// channel ring. Invalid packets are dropped and counted, never propagated as an error:
// a single malformed burst must not stall ingestion of the rest of the network.
func (w *WaveBuffer) Insert(p seis.WaveformPacket) {
	if err := p.Validate(); err != nil {
		metrics.DroppedPackets.WithLabelValues("invalid").Inc()
		return
	}
	r := w.ringFor(p.StationID, p.Channel)
	r.insert(&p, p.StationID, p.Channel)
}

// ReadWindow assembles a ChannelBlock for stationID ending at endTime, one row per
// seis.Channels entry, with a per-sample validity mask. A station with no rings yet
// returns an all-invalid block rather than an error.
func (w *WaveBuffer) ReadWindow(stationID string, endTime float64) seis.ChannelBlock {
	block := seis.ChannelBlock{StationID: stationID, EndTime: endTime}

	rows := make(map[seis.Channel][]float64, 3)
	var mask []bool

	for _, ch := range seis.Channels {
		w.mu.RLock()
		sr, ok := w.stations[stationID]
		w.mu.RUnlock()
		if !ok {
			rows[ch] = nanRow(w.capacitySamples())
			continue
		}
		sr.mu.RLock()
		r, ok := sr.rings[ch]
		sr.mu.RUnlock()
		if !ok {
			rows[ch] = nanRow(w.capacitySamples())
			continue
		}
		vals, m := r.readWindow(endTime)
		rows[ch] = vals
		if ch == seis.ChannelZ {
			mask = m
		} else {
			// a sample is valid for tensor purposes only if every component is present
			for i := range mask {
				mask[i] = mask[i] && m[i]
			}
		}
	}

	block.Z = rows[seis.ChannelZ]
	block.N = rows[seis.ChannelN]
	block.E = rows[seis.ChannelE]
	block.Mask = mask
	return block
}

func (w *WaveBuffer) capacitySamples() int {
	return int(float64(w.windowSeconds) * w.rateHz)
}

func nanRow(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(seis.NaN)
	}
	return out
}

// StationIDs returns every station that has received at least one packet, in no
// particular order.
func (w *WaveBuffer) StationIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.stations))
	for id := range w.stations {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot is the /debug/wavebuffer view: per-station, per-channel valid-sample counts,
// a lightweight window into ring health without exposing raw samples.
type Snapshot struct {
	Stations map[string]map[string]int `json:"stations"`
}

func (w *WaveBuffer) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := Snapshot{Stations: make(map[string]map[string]int, len(w.stations))}
	for id, sr := range w.stations {
		sr.mu.RLock()
		chCounts := make(map[string]int, len(sr.rings))
		for ch, r := range sr.rings {
			chCounts[string(ch)] = r.validCount()
		}
		sr.mu.RUnlock()
		out.Stations[id] = chCounts
	}
	return out
}
