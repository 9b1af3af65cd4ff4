// Copyright (C) 2026 TTSAM-RT Contributors.
// All rights reserved. This file is part of ttsam-rt.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsam-rt/ttsam-rt/pkg/seis"
)

func writeCSV(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLoadStationsAndTargets(t *testing.T) {
	dir := t.TempDir()
	stationsCSV := writeCSV(t, dir, "stations.csv",
		"station_id,latitude,longitude,elevation_m,network_code,location_code,vs30,site_class\n"+
			"STA1,23.5,121.0,100,TW,00,350,C\n"+
			"STA2,23.6,121.1,150,TW,00,,\n")
	targetsCSV := writeCSV(t, dir, "targets.csv",
		"target_name,latitude,longitude,vs30\nTaipei,25.03,121.5,250\n")
	vs30CSV := writeCSV(t, dir, "vs30.csv",
		"latitude,longitude,vs30\n23.6,121.1,400\n")

	c, err := Load(stationsCSV, targetsCSV, vs30CSV)
	require.NoError(t, err)

	m1, ok := c.Lookup("STA1")
	require.True(t, ok)
	require.NotNil(t, m1.Vs30)
	assert.Equal(t, 350.0, *m1.Vs30)

	m2, ok := c.Lookup("STA2")
	require.True(t, ok)
	require.NotNil(t, m2.Vs30, "missing vs30 should be filled from the nearest grid cell")
	assert.Equal(t, 400.0, *m2.Vs30)

	targets := c.Targets()
	require.Len(t, targets, 1)
	assert.Equal(t, "Taipei", targets[0].Name)

	_, ok = c.Lookup("GHOST")
	assert.False(t, ok)
}

func TestAddStationAndTarget(t *testing.T) {
	c := New()
	c.AddStation(seis.StationMeta{StationID: "X", Latitude: 1, Longitude: 2})
	c.AddTarget(seis.Target{Name: "Y"})
	_, ok := c.Lookup("X")
	assert.True(t, ok)
	assert.Len(t, c.Targets(), 1)
}
