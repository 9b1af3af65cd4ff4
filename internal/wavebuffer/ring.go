// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wavebuffer

import (
	"math"
	"sync"

	"github.com/ttsam-rt/ttsam-rt/internal/telemetry/metrics"
	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

// maxGapSeconds is how large a jump between a packet's start time and the previous
// packet's end time on the same channel may be (two sample periods at the supported
// rate) before the bandpass filter's state is reset instead of carried forward, per
// spec.md §4.1.
const maxGapSeconds = 2.0 / seis.SupportedSampleRateHz

// channelRing is a fixed-capacity circular buffer of physical-unit, bandpass-filtered
// samples for one (station, channel) pair. Capacity is WINDOW_SECONDS*sample_rate_hz
// samples. It is grounded on the teacher's pkg/metricstore Buffer: a fixed-size backing
// array addressed by an absolute sample index modulo capacity, with an anchor that
// slides forward and invalidates the slots it rotates out from under, in the same spirit
// as Buffer.write()'s sid-indexed ring with its frequency-derived slot count.
type channelRing struct {
	mu sync.Mutex

	capacity int
	rateHz   float64

	data  []float64
	valid []bool

	// anchorAbsIndex is the absolute sample index (round(t*rate)) held at data[0].
	anchorAbsIndex int64
	haveAnchor     bool

	lastEndTime float64
	haveLast    bool

	filter *bandpassFilter
}

func newChannelRing(windowSeconds int, rateHz float64, order int, lowHz, highHz float64, pool *samplePool) *channelRing {
	capacity := int(float64(windowSeconds) * rateHz)
	r := &channelRing{
		capacity: capacity,
		rateHz:   rateHz,
		filter:   newButterworthBandpass(order, lowHz, highHz, rateHz),
	}
	if pool != nil {
		r.data = pool.getFloat64(capacity)
		r.valid = pool.getBool(capacity)
	} else {
		r.data = make([]float64, capacity)
		r.valid = make([]bool, capacity)
	}
	return r
}

func absIndex(t, rateHz float64) int64 {
	v := t * rateHz
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}

func (r *channelRing) physicalSlot(idx int64) int {
	m := idx % int64(r.capacity)
	if m < 0 {
		m += int64(r.capacity)
	}
	return int(m)
}

// insert bandpass-filters and stores a packet's samples, after dividing by gain to
// physical units. stationID/channel are used only for metric labels.
func (r *channelRing) insert(p *seis.WaveformPacket, stationID string, channel seis.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(p.Samples) == 0 {
		return
	}

	startIdx := absIndex(p.StartTime, r.rateHz)
	endIdxExcl := startIdx + int64(len(p.Samples))

	if !r.haveAnchor {
		r.anchorAbsIndex = startIdx
		r.haveAnchor = true
	}

	if endIdxExcl <= r.anchorAbsIndex {
		metrics.DroppedPackets.WithLabelValues("stale").Inc()
		return
	}

	if startIdx-r.anchorAbsIndex >= int64(r.capacity) {
		r.resetWindow(startIdx)
		metrics.GapResyncs.WithLabelValues(stationID, string(channel)).Inc()
	}

	// slide the window forward if the packet's tail runs past the current anchor+capacity
	windowEndExcl := r.anchorAbsIndex + int64(r.capacity)
	if endIdxExcl > windowEndExcl {
		slide := endIdxExcl - windowEndExcl
		r.invalidateOldest(slide)
		r.anchorAbsIndex += slide
	}

	// reset filter continuity on a large timing gap from the previous packet on this channel
	if r.haveLast && p.StartTime-r.lastEndTime > maxGapSeconds {
		r.filter.reset()
	}
	r.lastEndTime = p.EndTime
	r.haveLast = true

	physical := make([]float64, len(p.Samples))
	for i, s := range p.Samples {
		physical[i] = s / p.Gain
	}
	filtered := r.filter.apply(physical)

	for i, v := range filtered {
		idx := startIdx + int64(i)
		if idx < r.anchorAbsIndex {
			continue // tail end of a straddling-the-anchor packet; already out of window
		}
		slot := r.physicalSlot(idx)
		r.data[slot] = v
		r.valid[slot] = true
	}
}

// resetWindow clears the ring and re-anchors it at newAnchor, used on a gap large
// enough that carrying old samples forward would be meaningless.
func (r *channelRing) resetWindow(newAnchor int64) {
	for i := range r.valid {
		r.valid[i] = false
	}
	r.anchorAbsIndex = newAnchor
	r.filter.reset()
	r.haveLast = false
}

// invalidateOldest marks the n oldest retained slots as invalid, capped at capacity.
func (r *channelRing) invalidateOldest(n int64) {
	if n > int64(r.capacity) {
		n = int64(r.capacity)
	}
	for i := int64(0); i < n; i++ {
		slot := r.physicalSlot(r.anchorAbsIndex + i)
		r.valid[slot] = false
	}
}

// readWindow returns capacity samples ending at endTime (inclusive of the sample at
// endTime), newest-last, with a validity mask. Unfilled/invalid slots read as seis.NaN
// in the returned values and false in the mask.
func (r *channelRing) readWindow(endTime float64) ([]float64, []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float64, r.capacity)
	mask := make([]bool, r.capacity)

	endIdx := absIndex(endTime, r.rateHz)
	startIdx := endIdx - int64(r.capacity) + 1

	for i := 0; i < r.capacity; i++ {
		absIdx := startIdx + int64(i)
		if !r.haveAnchor || absIdx < r.anchorAbsIndex || absIdx >= r.anchorAbsIndex+int64(r.capacity) {
			out[i] = math.NaN()
			continue
		}
		slot := r.physicalSlot(absIdx)
		if !r.valid[slot] {
			out[i] = math.NaN()
			continue
		}
		out[i] = r.data[slot]
		mask[i] = true
	}
	return out, mask
}

// validCount reports how many of the ring's capacity slots currently hold real samples.
func (r *channelRing) validCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.valid {
		if v {
			n++
		}
	}
	return n
}
