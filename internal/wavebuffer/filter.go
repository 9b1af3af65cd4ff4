// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package wavebuffer

import "math/cmplx"
import "math"

// biquad is one second-order IIR section in Direct Form II Transposed, carrying its
// own two-sample delay line. Continuity of z1/z2 across packet boundaries is exactly
// what gives the bandpass filter state that survives across WaveformPacket arrivals,
// as spec.md §4.1 requires.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (bq *biquad) step(x float64) float64 {
	y := bq.b0*x + bq.z1
	bq.z1 = bq.b1*x - bq.a1*y + bq.z2
	bq.z2 = bq.b2*x - bq.a2*y
	return y
}

func (bq *biquad) reset() {
	bq.z1, bq.z2 = 0, 0
}

// bandpassFilter is a cascade of biquad sections realizing a Butterworth bandpass of
// the configured order. sections has order/2 entries.
type bandpassFilter struct {
	sections []biquad
}

func (f *bandpassFilter) apply(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, x := range samples {
		v := x
		for s := range f.sections {
			v = f.sections[s].step(v)
		}
		out[i] = v
	}
	return out
}

func (f *bandpassFilter) reset() {
	for i := range f.sections {
		f.sections[i].reset()
	}
}

func (f *bandpassFilter) clone() *bandpassFilter {
	sections := make([]biquad, len(f.sections))
	copy(sections, f.sections)
	return &bandpassFilter{sections: sections}
}

// newButterworthBandpass designs a Butterworth bandpass filter of the given total pole
// order (must be even) between lowHz and highHz at sample rate fs, returning it as a
// cascade of order/2 biquad sections in Direct Form II Transposed.
//
// The design follows the standard analog-prototype route: an order/2-pole Butterworth
// lowpass prototype is transformed to an analog bandpass (doubling the pole count to
// order), each pole is mapped to the digital domain with the bilinear transform (with
// frequency prewarping), and the resulting conjugate pole pairs are grouped into
// biquads with a zero pair at DC and Nyquist. A single gain correction normalizes the
// passband to unit magnitude at the geometric-mean center frequency.
func newButterworthBandpass(order int, lowHz, highHz, fs float64) *bandpassFilter {
	n := order / 2
	if n < 1 {
		n = 1
	}

	// Prewarp corner frequencies for the bilinear transform.
	w1 := 2 * fs * math.Tan(math.Pi*lowHz/fs)
	w2 := 2 * fs * math.Tan(math.Pi*highHz/fs)
	w0 := math.Sqrt(w1 * w2) // center frequency, rad/s
	bw := w2 - w1            // bandwidth, rad/s

	// n-pole Butterworth lowpass prototype poles, normalized cutoff = 1 rad/s.
	proto := make([]complex128, n)
	for k := 0; k < n; k++ {
		theta := math.Pi * float64(2*k+n+1) / float64(2*n)
		proto[k] = complex(math.Cos(theta), math.Sin(theta))
	}

	// Lowpass-to-bandpass: each prototype pole p yields two analog bandpass poles,
	// roots of s^2 - (p*bw)*s + w0^2 = 0.
	var analogPoles []complex128
	for _, p := range proto {
		pbw := p * complex(bw, 0)
		disc := cmplx.Sqrt(pbw*pbw - complex(4*w0*w0, 0))
		analogPoles = append(analogPoles, (pbw+disc)/2, (pbw-disc)/2)
	}

	// Bilinear transform to the digital domain: z = (K+s)/(K-s), K = 2*fs.
	K := complex(2*fs, 0)
	digitalPoles := make([]complex128, len(analogPoles))
	for i, s := range analogPoles {
		digitalPoles[i] = (K + s) / (K - s)
	}

	sections := pairConjugates(digitalPoles)

	f := &bandpassFilter{sections: sections}
	normalizeGain(f, w0, fs)
	return f
}

// pairConjugates groups poles into conjugate pairs and builds one biquad per pair,
// with a zero pair at z=1 (DC) and z=-1 (Nyquist), matching a bandpass filter's
// numerator shape.
func pairConjugates(poles []complex128) []biquad {
	used := make([]bool, len(poles))
	var sections []biquad
	for i, p := range poles {
		if used[i] || imag(p) < 0 {
			continue
		}
		// find the matching conjugate
		best := -1
		bestDist := math.MaxFloat64
		for j := range poles {
			if used[j] || j == i {
				continue
			}
			d := cmplx.Abs(poles[j] - cmplx.Conj(p))
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		used[i] = true
		if best >= 0 {
			used[best] = true
		}
		a1 := -2 * real(p)
		a2 := real(p)*real(p) + imag(p)*imag(p)
		sections = append(sections, biquad{b0: 1, b1: 0, b2: -1, a1: a1, a2: a2})
	}
	if len(sections) == 0 {
		// degenerate (pure-real pole set); fall back to a single pole-free section that
		// keeps only the DC/Nyquist zero pair.
		sections = append(sections, biquad{b0: 1, b1: 0, b2: -1, a1: 0, a2: 0})
	}
	return sections
}

// normalizeGain scales the first section's numerator so the cascade has unit gain at
// the filter's geometric-mean center frequency.
func normalizeGain(f *bandpassFilter, w0, fs float64) {
	angle := w0 / fs
	z := cmplx.Exp(complex(0, angle))
	h := complex(1, 0)
	for _, s := range f.sections {
		num := complex(s.b0, 0) + complex(s.b1, 0)/z + complex(s.b2, 0)/(z*z)
		den := complex(1, 0) + complex(s.a1, 0)/z + complex(s.a2, 0)/(z*z)
		h *= num / den
	}
	mag := cmplx.Abs(h)
	if mag == 0 {
		mag = 1
	}
	f.sections[0].b0 /= mag
	f.sections[0].b2 /= mag
}
