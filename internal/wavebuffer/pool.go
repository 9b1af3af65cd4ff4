// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wavebuffer

import "sync"

// samplePool supplies the fixed-size backing arrays behind channelRing, modeled on the
// teacher's metricstore buffer free-lists. New rings take their arrays from it; nothing
// calls putFloat64/putBool, so arrays are never returned to it, and a ring reset clears
// the ring's existing arrays in place rather than swapping them.
type samplePool struct {
	floats sync.Pool
	bools  sync.Pool
}

func newSamplePool() *samplePool {
	return &samplePool{}
}

func (p *samplePool) getFloat64(n int) []float64 {
	if v := p.floats.Get(); v != nil {
		s := v.([]float64)
		if cap(s) >= n {
			s = s[:n]
			for i := range s {
				s[i] = 0
			}
			return s
		}
	}
	return make([]float64, n)
}

func (p *samplePool) putFloat64(s []float64) {
	p.floats.Put(s) //nolint:staticcheck // intentional: pool of plain slices, not pointers
}

func (p *samplePool) getBool(n int) []bool {
	if v := p.bools.Get(); v != nil {
		s := v.([]bool)
		if cap(s) >= n {
			s = s[:n]
			for i := range s {
				s[i] = false
			}
			return s
		}
	}
	return make([]bool, n)
}

func (p *samplePool) putBool(s []bool) {
	p.bools.Put(s) //nolint:staticcheck
}
