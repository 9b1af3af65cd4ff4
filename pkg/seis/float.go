// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package seis provides the wire/domain data model shared by every component of the
// shaking-intensity forecaster: waveform packets, picks, station and target metadata,
// the fixed-shape inference tensors, and the per-tick report.
package seis

import (
	"encoding/json"
	"math"
)

// Float is a float64 that marshals NaN as JSON null instead of failing encoding/json.
// Used wherever a sample or mixture parameter may be legitimately missing (a masked-out
// ring slot, a station that never made it into a tick).
type Float float64

// NaN is the canonical "missing value" marker.
var NaN = Float(math.NaN())

// IsNaN reports whether f is the missing-value marker.
func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

func (f Float) MarshalJSON() ([]byte, error) {
	if f.IsNaN() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(f))
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = NaN
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}
