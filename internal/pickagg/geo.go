// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pickagg

import "math"

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two lat/lon points in kilometers.
// No example repo in the corpus carries a geodesy dependency, so this is implemented
// directly against math.Sin/Cos/Atan2 rather than reaching for a library the rest of
// the module has no other use for.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}
